/*
Package observability binds executor lifecycle hooks to Prometheus metrics
and structured logs.

	m, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := m.Hooks().Merge(observability.LogHooks(logger))
*/
package observability
