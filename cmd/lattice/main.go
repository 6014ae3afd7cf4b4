// Command lattice validates, runs and serves flow graphs.
package main

func main() {
	Execute()
}
