package tools

import (
	"context"
	"sync/atomic"
)

// fakeClient 可编程的工具客户端
type fakeClient struct {
	tools     []Tool
	listErr   error
	listCalls atomic.Int32
	calls     atomic.Int32
	call      func(ctx context.Context, name string, args map[string]any) (*Result, error)
}

func (f *fakeClient) ListTools(ctx context.Context) ([]Tool, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	f.calls.Add(1)
	if f.call == nil {
		return &Result{Content: []Content{{Type: "text", Text: "ok"}}}, nil
	}
	return f.call(ctx, name, args)
}

func textResult(parts ...string) *Result {
	r := &Result{}
	for _, p := range parts {
		r.Content = append(r.Content, Content{Type: "text", Text: p})
	}
	return r
}
