package http

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// Describe returns an OpenAPI document for the currently registered webhooks
// and the fixed operational routes.
func (s *Server) Describe() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   s.title,
			Version: s.version,
		},
		Paths: openapi3.NewPaths(),
	}

	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: operation("health", "Liveness probe", http.StatusOK, "ok"),
	})
	doc.Paths.Set("/metrics", &openapi3.PathItem{
		Get: operation("metrics", "Prometheus metrics", http.StatusOK, "metrics in text exposition format"),
	})

	for _, topic := range s.Hooks() {
		op := operation("hook_"+topic, "Trigger flows listening on /hooks/"+topic, http.StatusOK, "run finished")
		op.Tags = []string{"webhooks"}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithDescription("JSON payload passed to the start node").
				WithJSONSchema(openapi3.NewSchema()),
		}
		op.Responses.Set("404", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("unknown webhook")})
		op.Responses.Set("500", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("run failed")})
		doc.Paths.Set("/hooks/"+topic, &openapi3.PathItem{Post: op})
	}
	return doc
}

func operation(id, summary string, status int, description string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(status, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription(description),
		}),
	)
	return op
}
