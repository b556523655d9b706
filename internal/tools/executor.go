package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"copilot/internal/model"
	"copilot/internal/pkg/logger"
)

// DefaultTimeout 单次工具调用超时
const DefaultTimeout = 45 * time.Second

// Outcome 一次工具调用的结果
// Content 是写回对话的文本：成功时为工具文本，失败时为错误信息
type Outcome struct {
	State   model.ToolCallState
	Content string
	Err     error
}

// Executor 工具执行器
type Executor struct {
	client  Client
	timeout time.Duration
}

// NewExecutor 创建工具执行器，client 可以为 nil
func NewExecutor(client Client, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{client: client, timeout: timeout}
}

// Timeout 单次调用超时
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Begin 生成调用开始时的运行状态
func (e *Executor) Begin(call model.ToolCallDecl) model.ToolCallState {
	return model.ToolCallState{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
		Running:   true,
		StartedAt: time.Now(),
	}
}

// Execute 执行一次工具调用，任何失败都以 Outcome.Err 返回，不会 panic
// 超时从 running.StartedAt 开始计算；超时后底层调用的 context 会被取消，但不会等待其返回
func (e *Executor) Execute(ctx context.Context, running model.ToolCallState) Outcome {
	logger := logger.Component("tools").With().Str("tool", running.Name).Str("tool_call_id", running.ID).Logger()

	args, err := ParseArguments(running.Arguments)
	if err != nil {
		return e.settle(running, nil, &ArgumentError{Tool: running.Name, Err: err})
	}

	if e.client == nil {
		return e.settle(running, nil, &TransportError{Tool: running.Name, Err: ErrClientUnavailable})
	}

	startedAt := running.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
		running.StartedAt = startedAt
	}
	deadline := startedAt.Add(e.timeout)
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// 外层 context（整轮超时）先到期时不算本次调用超时
	ownTimeout := func() bool {
		return errors.Is(callCtx.Err(), context.DeadlineExceeded) && !time.Now().Before(deadline)
	}

	type callResult struct {
		result *Result
		err    error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		result, err := e.client.CallTool(callCtx, running.Name, args)
		done <- callResult{result: result, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) && ownTimeout() {
				return e.settle(running, nil, &TimeoutError{Tool: running.Name, Timeout: e.timeout})
			}
			logger.Warn().Err(res.err).Msg("tool call failed")
			return e.settle(running, nil, &TransportError{Tool: running.Name, Err: res.err})
		}
		if res.result == nil {
			res.result = &Result{}
		}
		if res.result.IsError {
			msg := res.result.Text()
			if msg == "" {
				msg = fmt.Sprintf("tool %q reported an error", running.Name)
			}
			return e.settle(running, nil, &TransportError{Tool: running.Name, Err: errors.New(msg)})
		}
		return e.settle(running, res.result, nil)
	case <-callCtx.Done():
		if ownTimeout() {
			logger.Warn().Dur("timeout", e.timeout).Msg("tool call timed out")
			return e.settle(running, nil, &TimeoutError{Tool: running.Name, Timeout: e.timeout})
		}
		return e.settle(running, nil, &TransportError{Tool: running.Name, Err: callCtx.Err()})
	}
}

// settle 生成终态，Response 与 Error 二选一
func (e *Executor) settle(running model.ToolCallState, result *Result, err error) Outcome {
	state := running
	state.Running = false
	d := time.Since(running.StartedAt).Milliseconds()
	if running.StartedAt.IsZero() || d < 0 {
		d = 0
	}
	state.DurationMs = &d

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "tool call failed"
		}
		state.Error = msg
		state.Response = nil
		return Outcome{State: state, Content: msg, Err: err}
	}

	if result.Raw != nil {
		state.Response = result.Raw
	} else {
		state.Response = result
	}
	state.Error = ""
	return Outcome{State: state, Content: result.Text()}
}

// ParseArguments 解析工具参数，空字符串视为空对象
func ParseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return args, nil
}
