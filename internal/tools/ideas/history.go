package ideas

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

type ListTool struct {
	engine *engine.Engine
}

func (t *ListTool) Name() string {
	return "idea_list"
}

func (t *ListTool) Description() string {
	return "List all ideas with stage, uncertainty, and lineage"
}

func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *ListTool) Execute(input json.RawMessage) (interface{}, error) {
	summaries, err := t.engine.ListIdeas()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"ideas": summaries,
		"count": len(summaries),
	}, nil
}

func (t *ListTool) Title() string {
	return "List Ideas"
}

func (t *ListTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

type StageHistoryRequest struct {
	IdeaID string `json:"idea_id"`
	Stage  string `json:"stage"`
}

type StageHistoryTool struct {
	engine *engine.Engine
}

func (t *StageHistoryTool) Name() string {
	return "idea_stage_history"
}

func (t *StageHistoryTool) Description() string {
	return "Get the initial snapshot, full change log, and replayed current state of one stage"
}

func (t *StageHistoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"stage": {
				"type": "string",
				"description": "Stage whose log to read",
				"enum": ["requirements", "analysis", "design", "implementation", "testing", "validation", "deployment"]
			}
		},
		"required": ["idea_id", "stage"]
	}`)
}

func (t *StageHistoryTool) Execute(input json.RawMessage) (interface{}, error) {
	var req StageHistoryRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}
	stage, err := futures.ParseStage(req.Stage)
	if err != nil {
		return nil, err
	}

	return t.engine.GetStageHistory(req.IdeaID, stage)
}

func (t *StageHistoryTool) Title() string {
	return "Stage History"
}

func (t *StageHistoryTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

type VerifyLogRequest struct {
	IdeaID string `json:"idea_id"`
	Stage  string `json:"stage"`
}

type VerifyLogTool struct {
	engine *engine.Engine
}

func (t *VerifyLogTool) Name() string {
	return "idea_verify_log"
}

func (t *VerifyLogTool) Description() string {
	return "Replay one stage's change log and verify every recorded state hash matches"
}

func (t *VerifyLogTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "string",
				"description": "ID of the idea"
			},
			"stage": {
				"type": "string",
				"description": "Stage whose log to verify",
				"enum": ["requirements", "analysis", "design", "implementation", "testing", "validation", "deployment"]
			}
		},
		"required": ["idea_id", "stage"]
	}`)
}

func (t *VerifyLogTool) Execute(input json.RawMessage) (interface{}, error) {
	var req VerifyLogRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.IdeaID == "" {
		return nil, fmt.Errorf("idea_id is required")
	}
	stage, err := futures.ParseStage(req.Stage)
	if err != nil {
		return nil, err
	}

	if err := t.engine.VerifyChain(req.IdeaID, stage); err != nil {
		var notFound *futures.NotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		return map[string]interface{}{
			"valid":  false,
			"detail": err.Error(),
		}, nil
	}

	return map[string]interface{}{
		"valid": true,
	}, nil
}

func (t *VerifyLogTool) Title() string {
	return "Verify Change Log"
}

func (t *VerifyLogTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}
