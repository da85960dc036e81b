package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/chatflow/internal/agent"
)

type AgentsBody struct {
	Backend   string           `json:"backend" doc:"Backend new sessions use"`
	Model     string           `json:"model,omitempty" doc:"Configured model id"`
	Available []string         `json:"available" doc:"Registered backends"`
	Tools     []agent.ToolSpec `json:"tools" doc:"Tools offered to the agent"`
}

type ListAgentsOutput struct {
	Body AgentsBody
}

func RegisterAgentRoutes(api huma.API, backends BackendCatalog, tools ToolCatalog, active, model string) {
	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "Describe the agent configuration",
		Tags:        []string{"Agents"},
	}, func(_ context.Context, _ *struct{}) (*ListAgentsOutput, error) {
		specs := []agent.ToolSpec{}
		if tools != nil {
			specs = append(specs, tools.Specs()...)
		}
		return &ListAgentsOutput{Body: AgentsBody{
			Backend:   active,
			Model:     model,
			Available: backends.Available(),
			Tools:     specs,
		}}, nil
	})
}
