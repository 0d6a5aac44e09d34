package ideas

import (
	"encoding/json"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

type StatusRequest struct {
	IdeaID string `json:"idea_id"`
}

type StatusTool struct {
	engine *engine.Engine
}

func (t *StatusTool) Name() string {
	return "idea_status"
}

func (t *StatusTool) Description() string {
	return "Get an idea's stage, uncertainty, and derived health metrics"
}

func (t *StatusTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			}
		},
		"required": ["idea_id"]
	}`)
}

func (t *StatusTool) Execute(input json.RawMessage) (interface{}, error) {
	var req StatusRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}

	return t.engine.GetStatus(req.IdeaID)
}

func (t *StatusTool) Title() string {
	return "Idea Status"
}

func (t *StatusTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

type AdvanceStageRequest struct {
	IdeaID string `json:"idea_id"`
}

type AdvanceStageTool struct {
	engine *engine.Engine
}

func (t *AdvanceStageTool) Name() string {
	return "idea_advance_stage"
}

func (t *AdvanceStageTool) Description() string {
	return "Try to move an idea to the next stage; refused unless knowledge exists and enough critical assumptions are validated"
}

func (t *AdvanceStageTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			}
		},
		"required": ["idea_id"]
	}`)
}

func (t *AdvanceStageTool) Execute(input json.RawMessage) (interface{}, error) {
	var req AdvanceStageRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}

	return t.engine.AdvanceStage(req.IdeaID)
}

func (t *AdvanceStageTool) Title() string {
	return "Advance Stage"
}

func (t *AdvanceStageTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}
