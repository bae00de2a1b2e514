package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wardenhq/warden/internal/telemetry"
)

const defaultMaxIterations = 20

// ModelExecutor drives a chat model over a branch's gated action set. Each
// iteration generates once, fans out any requested action calls
// concurrently, and feeds the results back until the model answers without
// calling actions or the iteration cap is hit.
type ModelExecutor struct {
	model         model.ChatModel
	maxIterations int
	usage         *telemetry.UsageSink
	log           *slog.Logger
}

// ModelExecutorOption configures a ModelExecutor.
type ModelExecutorOption func(*ModelExecutor)

// WithMaxIterations caps generate/action rounds per branch.
func WithMaxIterations(n int) ModelExecutorOption {
	return func(e *ModelExecutor) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithUsageSink records model token usage into the run's sink.
func WithUsageSink(sink *telemetry.UsageSink) ModelExecutorOption {
	return func(e *ModelExecutor) { e.usage = sink }
}

// WithLogger sets the executor's logger.
func WithLogger(log *slog.Logger) ModelExecutorOption {
	return func(e *ModelExecutor) { e.log = log }
}

// NewModelExecutor builds an executor over chatModel.
func NewModelExecutor(chatModel model.ChatModel, opts ...ModelExecutorOption) *ModelExecutor {
	e := &ModelExecutor{
		model:         chatModel,
		maxIterations: defaultMaxIterations,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the branch's model/action round trip and returns the final
// answer plus the message history the branch accumulated.
func (e *ModelExecutor) Execute(ctx context.Context, frame *CallFrame) (string, []*schema.Message, error) {
	if e.model == nil {
		return "", nil, fmt.Errorf("no model configured")
	}

	actions, err := indexActions(ctx, frame.Actions)
	if err != nil {
		return "", nil, err
	}
	if err := e.bindActions(ctx, frame.Actions); err != nil {
		return "", nil, err
	}

	messages := e.seedMessages(frame)
	var finalContent string

	for i := 0; i < e.maxIterations; i++ {
		resp, err := e.model.Generate(ctx, messages)
		if err != nil {
			return "", nil, fmt.Errorf("generate: %w", err)
		}
		e.recordTokens(resp)

		if resp.Content != "" {
			finalContent = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			break
		}
		messages = append(messages, resp)
		messages = append(messages, e.runActionCalls(ctx, frame, actions, resp.ToolCalls)...)
	}

	return finalContent, messages, nil
}

// runActionCalls executes the model's requested calls concurrently and
// returns their results in request order.
func (e *ModelExecutor) runActionCalls(ctx context.Context, frame *CallFrame, actions map[string]tool.InvokableTool, calls []schema.ToolCall) []*schema.Message {
	type callResult struct {
		index int
		msg   *schema.Message
	}

	resultChan := make(chan callResult, len(calls))
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc schema.ToolCall) {
			defer wg.Done()

			name := tc.Function.Name
			var result string
			act, ok := actions[name]
			if !ok {
				result = fmt.Sprintf("Error: unknown action %q", name)
			} else {
				out, err := act.InvokableRun(ctx, tc.Function.Arguments)
				if err != nil {
					result = "Error: " + err.Error()
					e.log.Warn("action call failed",
						"branch", frame.BranchID, "action", name, "error", err)
				} else {
					result = out
				}
			}

			resultChan <- callResult{
				index: i,
				msg: &schema.Message{
					Role:       schema.Tool,
					Content:    result,
					ToolCallID: tc.ID,
				},
			}
		}(i, tc)
	}
	wg.Wait()
	close(resultChan)

	results := make([]*schema.Message, len(calls))
	for res := range resultChan {
		results[res.index] = res.msg
	}
	return results
}

func (e *ModelExecutor) seedMessages(frame *CallFrame) []*schema.Message {
	var messages []*schema.Message
	if frame.Target != nil && frame.Target.Instructions != "" {
		messages = append(messages, &schema.Message{
			Role:    schema.System,
			Content: frame.Target.Instructions,
		})
	}
	messages = append(messages, frame.History...)
	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: frame.Prompt,
	})
	return messages
}

func (e *ModelExecutor) bindActions(ctx context.Context, actions []tool.InvokableTool) error {
	binder, ok := e.model.(interface {
		BindTools([]*schema.ToolInfo) error
	})
	if !ok {
		return nil
	}
	infos := make([]*schema.ToolInfo, 0, len(actions))
	for _, act := range actions {
		info, err := act.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	return binder.BindTools(infos)
}

func (e *ModelExecutor) recordTokens(resp *schema.Message) {
	if e.usage == nil || resp == nil || resp.ResponseMeta == nil || resp.ResponseMeta.Usage == nil {
		return
	}
	u := resp.ResponseMeta.Usage
	e.usage.AddTokens(int64(u.PromptTokens), int64(u.CompletionTokens))
}

func indexActions(ctx context.Context, actions []tool.InvokableTool) (map[string]tool.InvokableTool, error) {
	index := make(map[string]tool.InvokableTool, len(actions))
	for _, act := range actions {
		info, err := act.Info(ctx)
		if err != nil {
			return nil, err
		}
		index[info.Name] = act
	}
	return index, nil
}
