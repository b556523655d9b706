package tools

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout 工具调用超时
var ErrTimeout = errors.New("tool call timed out")

// ErrClientUnavailable 没有可用的工具客户端
var ErrClientUnavailable = errors.New("tool client unavailable")

// ArgumentError 工具参数不是合法的 JSON 对象，该调用不会发出
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// TransportError 调用失败或工具自身报告错误
type TransportError struct {
	Tool string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tool %q failed", e.Tool)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError 调用超过单次超时
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Tool call %q timed out after %s", e.Tool, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
