/*
Package lattice is a flow-graph engine: directed graphs of typed nodes that
run end to end, concurrently, when one of their start nodes is triggered.

# Concept

A flow is a graph of nodes. Every node has a type that declares its input and
output connectors from its settings (and, for generic nodes, from the types
flowing into it). Connections join an output to an input when the output type
converts to the input type. A flow is valid when it has a connected start
node, a reachable end node, no cycles and every required input connected.

Start nodes bridge external triggers (manual runs, webhooks, event buses)
into a run. Process nodes compute outputs from inputs. End nodes perform a
side effect. Independent branches run in parallel; a node runs as soon as all
of its inputs are available.

# Usage

	eng, err := lattice.New()
	if err != nil {
		log.Fatal(err)
	}

	flow, err := document.ReadFile("orders.yaml")
	if err != nil {
		log.Fatal(err)
	}

	report, err := eng.RunFlow(ctx, flow, executor.Trigger{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(report.Duration)

Long-lived hosts store flows, activate them and let their start nodes wait for
external events:

	srv := http.NewServer()
	eng, _ := lattice.New(lattice.WithStore(file.New("flows")), lattice.WithWebhooks(srv))
	_ = eng.ActivateAll(ctx)
	_ = srv.ListenAndServe(ctx, ":8080")

# Packages

  - pkg/types: runtime type registry, conversions and boxed values.
  - pkg/graph: nodes, connectors, connections, ordering and validation.
  - pkg/executor: the concurrent run of one graph.
  - pkg/document: the durable form of a flow and its codecs.
  - pkg/trigger: activation of flows against their trigger sources.
  - pkg/adapters: stores, loaders and event sources.
*/
package lattice
