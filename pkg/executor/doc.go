/*
Package executor runs an ordered graph.

An Executor is built from an execution order and the connection set. Execute
walks the order once, dispatching every start and process node on its own
goroutine as soon as the futures of its upstream connections exist. Values are
awaited where they are used, so independent branches run concurrently while a
node blocks only on its own inputs. End nodes are dispatched last and the run
completes when every terminal effect has finished.

A failure fails every connection fed by the failing node and, transitively,
every dependent. The run's error joins the failures where they originated;
NodeReport.Upstream marks nodes that were skipped because an input failed.

Executors are single-use: build a new one per run.
*/
package executor
