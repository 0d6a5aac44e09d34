// Package ideas exposes the idea lifecycle as MCP tools. Each tool is
// a thin schema-validated shim over one engine operation.
package ideas

import (
	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/tools"
)

func GetTools(e *engine.Engine) []tools.Tool {
	return []tools.Tool{
		&CreateTool{engine: e},
		&AddKnowledgeTool{engine: e},
		&UpdateKnowledgeTool{engine: e},
		&AddAssumptionTool{engine: e},
		&ValidateAssumptionTool{engine: e},
		&AddGoalTool{engine: e},
		&CheckGoalsTool{engine: e},
		&StatusTool{engine: e},
		&AdvanceStageTool{engine: e},
		&ListTool{engine: e},
		&StageHistoryTool{engine: e},
		&VerifyLogTool{engine: e},
	}
}

func GetToolByName(name string, e *engine.Engine) tools.Tool {
	for _, tool := range GetTools(e) {
		if tool.Name() == name {
			return tool
		}
	}
	return nil
}
