package ideas

import (
	"encoding/json"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

type CreateRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ParentIdeaID string `json:"parent_idea_id,omitempty"`
}

type CreateTool struct {
	engine *engine.Engine
}

func (t *CreateTool) Name() string {
	return "idea_create"
}

func (t *CreateTool) Description() string {
	return "Create a new idea at the requirements stage, optionally branching from a parent idea"
}

func (t *CreateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {
				"type": "string",
				"description": "Short name of the idea"
			},
			"description": {
				"type": "string",
				"description": "What this possible future looks like"
			},
			"parent_idea_id": {
				"type": "string",
				"description": "ID of the idea to branch from (optional)"
			}
		},
		"required": ["name", "description"]
	}`)
}

func (t *CreateTool) Execute(input json.RawMessage) (interface{}, error) {
	var req CreateRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	return t.engine.CreateIdea(req.Name, req.Description, req.ParentIdeaID)
}

func (t *CreateTool) Title() string {
	return "Create Idea"
}

func (t *CreateTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}
