/*
Package trigger activates flows against their external trigger sources and
runs them when a start node fires.

Activating a flow snapshots its execution order and connections and calls
Setup on every start node; each start node hands its source a callback that
runs the snapshot with itself as the originating trigger. Runs of the same
flow are serialized, locally and, when a DistributedLocker is configured,
across replicas.
*/
package trigger
