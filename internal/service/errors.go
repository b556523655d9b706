package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyMessage 消息为空或只有空白
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnInProgress 上一轮对话尚未结束
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrDisabled 模型后端未启用
	ErrDisabled = errors.New("copilot is not enabled")
	// ErrNothingToRetry 最后一条回复不是可重试的失败
	ErrNothingToRetry = errors.New("nothing to retry")
	// ErrConversationNotFound 对话不存在
	ErrConversationNotFound = errors.New("conversation not found")
)

// StreamTransportError 模型流连接或读取失败，终止整轮对话
type StreamTransportError struct {
	Round int
	Err   error
}

func (e *StreamTransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stream failed in round %d", e.Round)
	}
	return e.Err.Error()
}

func (e *StreamTransportError) Unwrap() error {
	return e.Err
}

// TurnTimeoutError 整轮对话超过时限
type TurnTimeoutError struct {
	Timeout time.Duration
}

func (e *TurnTimeoutError) Error() string {
	return "Request timed out"
}
