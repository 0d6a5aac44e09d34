package tools

import (
	"encoding/json"

	"github.com/alucardeht/futures-mcp/pkg/version"
)

type HealthTool struct {
	countIdeas func() (int, error)
}

func NewHealthTool(countIdeas func() (int, error)) *HealthTool {
	return &HealthTool{countIdeas: countIdeas}
}

func (t *HealthTool) Name() string {
	return "health"
}

func (t *HealthTool) Description() string {
	return "Check server health and idea count"
}

func (t *HealthTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *HealthTool) Execute(input json.RawMessage) (interface{}, error) {
	ideas := 0
	status := "healthy"
	if t.countIdeas != nil {
		n, err := t.countIdeas()
		if err != nil {
			status = "degraded"
		} else {
			ideas = n
		}
	}

	return map[string]interface{}{
		"status":  status,
		"version": version.Version,
		"ideas":   ideas,
	}, nil
}

func (t *HealthTool) Title() string {
	return "Health Check"
}

func (t *HealthTool) Annotations() map[string]bool {
	return ReadOnlyAnnotations()
}
