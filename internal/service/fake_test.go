package service

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"copilot/internal/config"
	"copilot/internal/model"
	"copilot/internal/pkg/ctxutil"
	"copilot/internal/pkg/storage/memory"
	"copilot/internal/repository"
	"copilot/internal/tools"
)

// scriptedRound 一轮的脚本
type scriptedRound struct {
	chunks  []*schema.Message
	openErr error         // StreamCompletions 直接返回的错误
	recvErr error         // 发送完 chunks 后返回的错误
	delay   time.Duration // 每个 chunk 之间的间隔
	block   bool          // 发送完 chunks 后阻塞直到 ctx 结束
}

// fakeBackend 按脚本返回流的模型后端
type fakeBackend struct {
	mu       sync.Mutex
	disabled bool
	rounds   []scriptedRound
	requests [][]*schema.Message
	tools    [][]*schema.ToolInfo
	onStream func(call int)
}

func (f *fakeBackend) Enabled(ctx context.Context) (bool, error) {
	return !f.disabled, nil
}

func (f *fakeBackend) StreamCompletions(ctx context.Context, messages []*schema.Message, toolInfos []*schema.ToolInfo) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, append([]*schema.Message(nil), messages...))
	f.tools = append(f.tools, toolInfos)
	var r scriptedRound
	if call < len(f.rounds) {
		r = f.rounds[call]
	}
	hook := f.onStream
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if r.openErr != nil {
		return nil, r.openErr
	}
	if !r.block && r.recvErr == nil && r.delay == 0 {
		return schema.StreamReaderFromArray(r.chunks), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(r.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range r.chunks {
			if r.delay > 0 {
				time.Sleep(r.delay)
			}
			if closed := sw.Send(c, nil); closed {
				return
			}
		}
		if r.recvErr != nil {
			sw.Send(nil, r.recvErr)
			return
		}
		if r.block {
			<-ctx.Done()
		}
	}()
	return sr, nil
}

func (f *fakeBackend) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeBackend) request(i int) []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// fakeToolClient 可编程的工具客户端
type fakeToolClient struct {
	list []tools.Tool
	call func(ctx context.Context, name string, args map[string]any) (*tools.Result, error)
}

func (f *fakeToolClient) ListTools(ctx context.Context) ([]tools.Tool, error) {
	return f.list, nil
}

func (f *fakeToolClient) CallTool(ctx context.Context, name string, args map[string]any) (*tools.Result, error) {
	if f.call == nil {
		return &tools.Result{Content: []tools.Content{{Type: "text", Text: name + " ok"}}}, nil
	}
	return f.call(ctx, name, args)
}

func content(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func toolCallChunk(index int, callID, name, args string) *schema.Message {
	idx := index
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index:    &idx,
			ID:       callID,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func textResult(text string) *tools.Result {
	return &tools.Result{Content: []tools.Content{{Type: "text", Text: text}}}
}

var grafanaTools = []tools.Tool{
	{Name: "list_datasources", Description: "List datasources"},
	{Name: "query_prometheus", Description: "Run a PromQL query"},
	{Name: "update_dashboard", Description: "Not on the allow-list"},
}

type testEnv struct {
	svc     *CopilotService
	backend *fakeBackend
	repo    *repository.ConversationRepo
}

func newTestEnv(backend *fakeBackend, client tools.Client, mutate func(cfg *config.CopilotConfig)) *testEnv {
	cfg := config.DefaultCopilotConfig()
	cfg.TurnTimeout = 2 * time.Second
	cfg.ToolTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	repo := repository.NewConversationRepo(memory.NewMemoryStorage(), "", 0)
	svc := NewCopilotService(context.Background(), Options{
		Backend:    backend,
		ToolClient: client,
		Repo:       repo,
		Context:    ctxutil.Static("/d/node-exporter"),
		Config:     cfg,
	})
	return &testEnv{svc: svc, backend: backend, repo: repo}
}

func lastAssistant(snap model.Snapshot) model.Message {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == model.RoleAssistant {
			return snap.Messages[i]
		}
	}
	return model.Message{}
}

func toolMessages(snap model.Snapshot) []model.Message {
	var out []model.Message
	for _, m := range snap.Messages {
		if m.Role == model.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

// waitFor 轮询直到条件成立，最多等待一秒
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
