/*
Package graph is the flow data model: typed connectors, immutable nodes, the
sealed node type protocol and the mutable Graph that ties them together.

A NodeType belongs to exactly one Category. Start types emit outputs when a
flow is triggered, Process types map inputs to outputs and End types consume
inputs for a side effect. Implementations embed StartBase, ProcessBase or
EndBase, which closes the set of categories.

Nodes never store connectors. Inputs and outputs are re-derived from the node
type, the node's settings and the types currently flowing into its inputs,
so a "generic" node can adapt its outputs to whatever is plugged in.

The Graph keeps its connection set and per-node index in step; every mutation
either fully applies or leaves the graph untouched. ExecutionOrder is a Kahn
sort over connected nodes that also proves the flow reaches from a start node
to an end node without cycles.
*/
package graph
