package ideas

import (
	"encoding/json"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

type AddAssumptionRequest struct {
	IdeaID      string  `json:"idea_id"`
	Text        string  `json:"assumption_text"`
	Category    string  `json:"category"`
	Criticality float64 `json:"criticality"`
}

type AddAssumptionTool struct {
	engine *engine.Engine
}

func (t *AddAssumptionTool) Name() string {
	return "idea_add_assumption"
}

func (t *AddAssumptionTool) Description() string {
	return "Record a hypothesis about the world; high criticality makes it block stage advancement until validated"
}

func (t *AddAssumptionTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"assumption_text": {
				"type": "string",
				"description": "The hypothesis being assumed true"
			},
			"category": {
				"type": "string",
				"description": "What part of the world the assumption is about",
				"enum": ["user_behavior", "market", "technology", "regulations", "resources"]
			},
			"criticality": {
				"type": "number",
				"description": "How much the idea depends on this, 0.0 to 1.0; above 0.7 is critical",
				"minimum": 0,
				"maximum": 1
			}
		},
		"required": ["idea_id", "assumption_text", "category", "criticality"]
	}`)
}

func (t *AddAssumptionTool) Execute(input json.RawMessage) (interface{}, error) {
	var req AddAssumptionRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}

	return t.engine.AddAssumption(req.IdeaID, req.Text,
		futures.AssumptionCategory(req.Category), req.Criticality)
}

func (t *AddAssumptionTool) Title() string {
	return "Add Assumption"
}

func (t *AddAssumptionTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}

type ValidateAssumptionRequest struct {
	IdeaID   string `json:"idea_id"`
	Text     string `json:"assumption_text"`
	Evidence string `json:"evidence"`
}

type ValidateAssumptionTool struct {
	engine *engine.Engine
}

func (t *ValidateAssumptionTool) Name() string {
	return "idea_validate_assumption"
}

func (t *ValidateAssumptionTool) Description() string {
	return "Mark an assumption as validated with supporting evidence"
}

func (t *ValidateAssumptionTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"assumption_text": {
				"type": "string",
				"description": "Exact text of the assumption to validate"
			},
			"evidence": {
				"type": "string",
				"description": "What demonstrated the assumption holds"
			}
		},
		"required": ["idea_id", "assumption_text", "evidence"]
	}`)
}

func (t *ValidateAssumptionTool) Execute(input json.RawMessage) (interface{}, error) {
	var req ValidateAssumptionRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}
	if req.Text == "" {
		return nil, fmt.Errorf("assumption_text is required")
	}

	return t.engine.ValidateAssumption(req.IdeaID, req.Text, req.Evidence)
}

func (t *ValidateAssumptionTool) Title() string {
	return "Validate Assumption"
}

func (t *ValidateAssumptionTool) Annotations() map[string]bool {
	return tools.SafeWriteAnnotations()
}
