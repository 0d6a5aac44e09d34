package ideas

import (
	"encoding/json"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

type AddGoalRequest struct {
	IdeaID        string `json:"idea_id"`
	Text          string `json:"goal_text"`
	MetricName    string `json:"metric_name"`
	TargetValue   any    `json:"target_value"`
	ValidatorName string `json:"validator_function,omitempty"`
}

type AddGoalTool struct {
	engine *engine.Engine
}

func (t *AddGoalTool) Name() string {
	return "idea_add_goal"
}

func (t *AddGoalTool) Description() string {
	return "Record a measurable goal judged by a named validator against collected metrics"
}

func (t *AddGoalTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"goal_text": {
				"type": "string",
				"description": "The outcome being aimed for"
			},
			"metric_name": {
				"type": "string",
				"description": "Key in the metrics map the goal is measured by"
			},
			"target_value": {
				"description": "Target the metric must reach; number, boolean, or list length"
			},
			"validator_function": {
				"type": "string",
				"description": "Registered validator name (numeric_threshold, percentage, boolean, list_length, or custom)"
			}
		},
		"required": ["idea_id", "goal_text", "metric_name", "target_value"]
	}`)
}

func (t *AddGoalTool) Execute(input json.RawMessage) (interface{}, error) {
	var req AddGoalRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}

	return t.engine.AddGoal(req.IdeaID, req.Text, req.MetricName, req.TargetValue, req.ValidatorName)
}

func (t *AddGoalTool) Title() string {
	return "Add Goal"
}

func (t *AddGoalTool) Annotations() map[string]bool {
	return tools.NonIdempotentWriteAnnotations()
}

type CheckGoalsRequest struct {
	IdeaID  string         `json:"idea_id"`
	Metrics map[string]any `json:"metrics"`
}

type CheckGoalsTool struct {
	engine *engine.Engine
}

func (t *CheckGoalsTool) Name() string {
	return "idea_check_goals"
}

func (t *CheckGoalsTool) Description() string {
	return "Evaluate every goal of the current stage against supplied metrics; goals passing for the first time become achieved"
}

func (t *CheckGoalsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"metrics": {
				"type": "object",
				"description": "Measured values keyed by metric name"
			}
		},
		"required": ["idea_id", "metrics"]
	}`)
}

func (t *CheckGoalsTool) Execute(input json.RawMessage) (interface{}, error) {
	var req CheckGoalsRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}

	return t.engine.CheckGoals(req.IdeaID, req.Metrics)
}

func (t *CheckGoalsTool) Title() string {
	return "Check Goals"
}

func (t *CheckGoalsTool) Annotations() map[string]bool {
	return tools.SafeWriteAnnotations()
}
