package ideas

import (
	"encoding/json"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

type AddKnowledgeRequest struct {
	IdeaID        string         `json:"idea_id"`
	ComponentName string         `json:"component_name"`
	ComponentType string         `json:"component_type"`
	Specification map[string]any `json:"specification"`
	Confidence    float64        `json:"confidence"`
}

type AddKnowledgeTool struct {
	engine *engine.Engine
}

func (t *AddKnowledgeTool) Name() string {
	return "idea_add_knowledge"
}

func (t *AddKnowledgeTool) Description() string {
	return "Record a known fact about a system component at the idea's current stage"
}

func (t *AddKnowledgeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"component_name": {
				"type": "string",
				"description": "Name of the component the fact is about"
			},
			"component_type": {
				"type": "string",
				"description": "Kind of component",
				"enum": ["api", "database", "ui", "business_logic", "integration"]
			},
			"specification": {
				"type": "object",
				"description": "Free-form specification of the component"
			},
			"confidence": {
				"type": "number",
				"description": "How certain this fact is, 0.0 to 1.0",
				"minimum": 0,
				"maximum": 1
			}
		},
		"required": ["idea_id", "component_name", "component_type", "confidence"]
	}`)
}

func (t *AddKnowledgeTool) Execute(input json.RawMessage) (interface{}, error) {
	var req AddKnowledgeRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}

	return t.engine.AddKnowledge(req.IdeaID, req.ComponentName,
		futures.ComponentType(req.ComponentType), req.Specification, req.Confidence)
}

func (t *AddKnowledgeTool) Title() string {
	return "Add Knowledge"
}

func (t *AddKnowledgeTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}

type UpdateKnowledgeRequest struct {
	IdeaID        string         `json:"idea_id"`
	ComponentName string         `json:"component_name"`
	Specification map[string]any `json:"specification"`
	Confidence    *float64       `json:"confidence,omitempty"`
}

type UpdateKnowledgeTool struct {
	engine *engine.Engine
}

func (t *UpdateKnowledgeTool) Name() string {
	return "idea_update_knowledge"
}

func (t *UpdateKnowledgeTool) Description() string {
	return "Deep-merge a partial specification into the latest knowledge entry for a component"
}

func (t *UpdateKnowledgeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"component_name": {
				"type": "string",
				"description": "Component whose latest entry is updated"
			},
			"specification": {
				"type": "object",
				"description": "Partial specification to merge in"
			},
			"confidence": {
				"type": "number",
				"description": "New confidence value (optional)",
				"minimum": 0,
				"maximum": 1
			}
		},
		"required": ["idea_id", "component_name", "specification"]
	}`)
}

func (t *UpdateKnowledgeTool) Execute(input json.RawMessage) (interface{}, error) {
	var req UpdateKnowledgeRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}
	if req.ComponentName == "" {
		return nil, fmt.Errorf("component_name is required")
	}

	return t.engine.UpdateKnowledge(req.IdeaID, req.ComponentName, req.Specification, req.Confidence)
}

func (t *UpdateKnowledgeTool) Title() string {
	return "Update Knowledge"
}

func (t *UpdateKnowledgeTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}
