package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wardenhq/warden/internal/telemetry"
)

// scriptedModel returns canned responses in order and records what it saw.
type scriptedModel struct {
	responses []*schema.Message
	calls     int
	bound     []*schema.ToolInfo
	seen      [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.seen = append(m.seen, input)
	if m.calls >= len(m.responses) {
		return nil, fmt.Errorf("no scripted response %d", m.calls)
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error {
	m.bound = tools
	return nil
}

type echoTool struct{ calls int }

func (e *echoTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "echo_tool", Desc: "echoes its arguments"}, nil
}

func (e *echoTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	e.calls++
	return "echo:" + argsJSON, nil
}

func TestModelExecutorToolLoop(t *testing.T) {
	echo := &echoTool{}
	m := &scriptedModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{ID: "call-1", Function: schema.FunctionCall{Name: "echo_tool", Arguments: `{"msg":"hi"}`}},
				},
			},
			{
				Role:    schema.Assistant,
				Content: "final answer",
				ResponseMeta: &schema.ResponseMeta{
					Usage: &schema.TokenUsage{PromptTokens: 11, CompletionTokens: 7},
				},
			},
		},
	}

	usage := telemetry.NewUsageSink()
	exec := NewModelExecutor(m, WithUsageSink(usage))
	frame := &CallFrame{
		BranchID: "root",
		Prompt:   "do the thing",
		Actions:  []tool.InvokableTool{echo},
		Target:   &TaskDef{Name: "main", Instructions: "be careful"},
	}

	result, history, err := exec.Execute(context.Background(), frame)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "final answer" {
		t.Errorf("result = %q", result)
	}
	if echo.calls != 1 {
		t.Errorf("echo ran %d times, want 1", echo.calls)
	}
	if len(m.bound) != 1 || m.bound[0].Name != "echo_tool" {
		t.Errorf("bound tools = %+v", m.bound)
	}

	// History: system, user, assistant tool call, tool result.
	if len(history) < 4 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Role != schema.System || history[0].Content != "be careful" {
		t.Errorf("history[0] = %+v", history[0])
	}
	last := history[len(history)-1]
	if last.Role != schema.Tool || last.ToolCallID != "call-1" {
		t.Errorf("last history entry = %+v", last)
	}

	snap := usage.Snapshot()
	if snap.PromptTokens != 11 || snap.CompletionTokens != 7 {
		t.Errorf("usage = %+v", snap)
	}
}

func TestModelExecutorUnknownAction(t *testing.T) {
	m := &scriptedModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{ID: "call-1", Function: schema.FunctionCall{Name: "missing", Arguments: `{}`}},
				},
			},
			{Role: schema.Assistant, Content: "recovered"},
		},
	}

	exec := NewModelExecutor(m)
	frame := &CallFrame{BranchID: "root", Prompt: "go"}

	result, history, err := exec.Execute(context.Background(), frame)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %q", result)
	}
	// The unknown action surfaces as an error result, not a hard failure.
	found := false
	for _, msg := range history {
		if msg.Role == schema.Tool && msg.ToolCallID == "call-1" {
			found = true
			if msg.Content == "" {
				t.Error("tool result should explain the unknown action")
			}
		}
	}
	if !found {
		t.Error("tool result message missing from history")
	}
}

func TestModelExecutorIterationCap(t *testing.T) {
	loop := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "c", Function: schema.FunctionCall{Name: "echo_tool", Arguments: `{}`}},
		},
	}
	m := &scriptedModel{responses: []*schema.Message{loop, loop, loop, loop}}

	echo := &echoTool{}
	exec := NewModelExecutor(m, WithMaxIterations(3))
	frame := &CallFrame{BranchID: "root", Prompt: "go", Actions: []tool.InvokableTool{echo}}

	if _, _, err := exec.Execute(context.Background(), frame); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if m.calls != 3 {
		t.Errorf("model called %d times, want the cap of 3", m.calls)
	}
}
