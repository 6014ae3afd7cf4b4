package graph_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestGenerateMermaid(t *testing.T) {
	eng, err := lattice.New()
	if err != nil {
		t.Fatal(err)
	}
	g, err := eng.Decode(ports.ContractFlow("demo"))
	if err != nil {
		t.Fatal(err)
	}

	report := &executor.Report{Nodes: []executor.NodeReport{
		{NodeID: "start"},
		{NodeID: "inc", Err: errors.New("boom")},
		{NodeID: "out", Err: errors.New("boom"), Upstream: true},
	}}

	tests := []struct {
		name     string
		report   *executor.Report
		contains []string
		excludes []string
	}{
		{
			name: "Shapes By Category",
			contains: []string{
				`start(("Start <br/> manual_start"))`,
				`inc["inc <br/> add"]`,
				`out[/"out <br/> record"/]`,
			},
		},
		{
			name: "Connection Labels",
			contains: []string{
				`start -- "count -> value" --> inc`,
				`inc -- "result -> value" --> out`,
			},
			excludes: []string{"classDef"},
		},
		{
			name:   "Run Overlay",
			report: report,
			contains: []string{
				"class start ok;",
				"class inc failed;",
				"class out skipped;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(g, tt.report)
			if !strings.HasPrefix(got, "graph LR\n") {
				t.Errorf("GenerateMermaid() missing header:\n%v", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, unwanted)
				}
			}
		})
	}
}
