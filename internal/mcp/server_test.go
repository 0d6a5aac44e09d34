package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/tools"
	"github.com/alucardeht/futures-mcp/internal/tools/ideas"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	e, err := engine.Open(engine.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	registry := tools.NewRegistry()
	for _, tool := range ideas.GetTools(e) {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return NewServer(registry)
}

func TestHandleInitialize(t *testing.T) {
	s := newTestServer(t)

	resp := s.HandleRequest(&Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"clientInfo":      map[string]interface{}{"name": "test", "version": "0.1"},
		},
	})

	if resp.Error != nil {
		t.Fatalf("initialize failed: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("unexpected protocol version: %v", result["protocolVersion"])
	}
}

func TestHandleListTools(t *testing.T) {
	s := newTestServer(t)

	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	if resp.Error != nil {
		t.Fatalf("tools/list failed: %v", resp.Error)
	}

	result := resp.Result.(map[string]interface{})
	toolsData := result["tools"].([]map[string]interface{})
	if len(toolsData) != 12 {
		t.Errorf("expected 12 tools, got %d", len(toolsData))
	}
	for _, td := range toolsData {
		if td["inputSchema"] == nil {
			t.Errorf("tool %v missing inputSchema", td["name"])
		}
	}
}

func TestHandleCallTool(t *testing.T) {
	s := newTestServer(t)

	resp := s.HandleRequest(&Request{
		JSONRPC: "2.0",
		ID:      3,
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name": "idea_create",
			"arguments": map[string]interface{}{
				"name":        "test idea",
				"description": "a future worth exploring",
			},
		},
	})

	if resp.Error != nil {
		t.Fatalf("tools/call failed: %v", resp.Error)
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content shape: %v", content)
	}

	var idea map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &idea); err != nil {
		t.Fatalf("result text is not JSON: %v", err)
	}
	if idea["current_stage"] != "requirements" {
		t.Errorf("unexpected stage: %v", idea["current_stage"])
	}
}

func TestHandleCallToolErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.HandleRequest(&Request{
		JSONRPC: "2.0",
		ID:      4,
		Method:  "tools/call",
		Params:  map[string]interface{}{"name": "no_such_tool"},
	})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("expected -32601, got %v", resp.Error)
	}

	resp = s.HandleRequest(&Request{
		JSONRPC: "2.0",
		ID:      5,
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name":      "idea_status",
			"arguments": map[string]interface{}{"idea_id": "missing"},
		},
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("unknown idea should map to -32602, got %v", resp.Error)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	s := newTestServer(t)

	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: 6, Method: "bogus/method"})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("expected method-not-found, got %v", resp.Error)
	}
}

func TestProcessStream(t *testing.T) {
	s := newTestServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`not json at all`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := s.ProcessStream(strings.NewReader(input), &out); err != nil {
		t.Fatalf("process stream: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses, got %d: %s", len(lines), out.String())
	}

	var parseError Response
	if err := json.Unmarshal([]byte(lines[1]), &parseError); err != nil {
		t.Fatalf("bad response line: %v", err)
	}
	if parseError.Error == nil || parseError.Error.Code != -32700 {
		t.Errorf("expected parse error, got %v", parseError.Error)
	}
}
