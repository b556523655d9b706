package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"copilot/internal/ai"
	"copilot/internal/config"
	"copilot/internal/model"
	"copilot/internal/pkg/ctxutil"
	"copilot/internal/pkg/id"
	"copilot/internal/pkg/logger"
	"copilot/internal/repository"
	"copilot/internal/tools"
)

// FallbackContent 整轮没有收到任何内容时显示的文本
const FallbackContent = "Request timed out or no response received. Please try again."

// retryablePattern 可重试的失败回复
var retryablePattern = regexp.MustCompile(`(?i)error|timed out|no response`)

// Options 编排服务依赖
type Options struct {
	Backend    ai.Backend
	ToolClient tools.Client                 // 可为 nil
	Catalog    *tools.Catalog               // 为 nil 时按 Backend.Enabled 新建
	Repo       *repository.ConversationRepo // 可为 nil，此时不持久化
	Context    ctxutil.Provider             // 可为 nil
	Config     config.CopilotConfig
}

// CopilotService 对话编排服务
// 同一时间只运行一轮对话；所有状态修改在 mu 下串行执行，工具 goroutine 不接触共享状态
type CopilotService struct {
	backend  ai.Backend
	catalog  *tools.Catalog
	repo     *repository.ConversationRepo
	provider ctxutil.Provider
	cfg      config.CopilotConfig
	bus      *broadcaster

	mu         sync.Mutex
	toolClient tools.Client
	toolGen    uint64 // SetToolClient 时递增，作为工具目录缓存的键
	state      turnState
	active     *turn
}

// turn 一轮进行中的对话
type turn struct {
	ctx      context.Context
	cancel   context.CancelFunc
	outbound []*schema.Message
	tools    []*schema.ToolInfo
	executor *tools.Executor
	logger   zerolog.Logger
}

// NewCopilotService 创建编排服务，并恢复最近一次对话
func NewCopilotService(ctx context.Context, opts Options) *CopilotService {
	cfg := opts.Config
	defaults := config.DefaultCopilotConfig()
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaults.TurnTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaults.ToolTimeout
	}
	if cfg.TitleMaxLen <= 0 {
		cfg.TitleMaxLen = defaults.TitleMaxLen
	}
	if cfg.ToolAllowList == nil {
		cfg.ToolAllowList = defaults.ToolAllowList
	}

	catalog := opts.Catalog
	if catalog == nil {
		var enabled tools.EnabledFunc
		if opts.Backend != nil {
			enabled = opts.Backend.Enabled
		} else {
			enabled = func(context.Context) (bool, error) { return false, nil }
		}
		catalog = tools.NewCatalog(enabled)
	}

	provider := opts.Context
	if provider == nil {
		provider = ctxutil.Static(cfg.LocationHint)
	}

	s := &CopilotService{
		backend:    opts.Backend,
		catalog:    catalog,
		repo:       opts.Repo,
		provider:   provider,
		cfg:        cfg,
		bus:        newBroadcaster(),
		toolClient: opts.ToolClient,
		state:      newTurnState(id.New(), time.Now()),
	}

	if s.repo != nil {
		if conv, ok := s.repo.LoadLatest(ctx); ok {
			s.state = stateFromConversation(*conv)
			log.Info().Str("conversation_id", conv.ID).Int("messages", len(conv.Messages)).Msg("restored latest conversation")
		}
	}
	return s
}

// SetToolClient 替换工具客户端（例如重连后），工具目录随之失效
func (s *CopilotService) SetToolClient(client tools.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolClient = client
	s.toolGen++
}

// Enabled 后端是否可用
func (s *CopilotService) Enabled(ctx context.Context) (bool, error) {
	client, gen := s.currentToolClient()
	value, err := s.catalog.Load(ctx, client, gen)
	if err != nil {
		return false, err
	}
	return value.Enabled, nil
}

// Snapshot 当前状态快照
func (s *CopilotService) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot()
}

// Subscribe 订阅状态快照，订阅时立即收到当前快照
func (s *CopilotService) Subscribe() (<-chan model.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bus.subscribe(s.state.snapshot())
}

// IsStreaming 是否有进行中的对话
func (s *CopilotService) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.streaming
}

// SendMessage 发送一条用户消息并运行完整的一轮对话，返回时本轮已结束
// 前置条件不满足时返回错误且不修改任何状态；本轮内的失败以 assistant 内容呈现，不返回错误
func (s *CopilotService) SendMessage(ctx context.Context, text string) error {
	t, err := s.begin(ctx, text)
	if err != nil {
		return err
	}
	s.run(t)
	return nil
}

// Submit 与 SendMessage 相同，但在追加消息后立即返回，对话在后台运行
// 本轮使用的 context 不随 ctx 取消
func (s *CopilotService) Submit(ctx context.Context, text string) error {
	t, err := s.begin(context.WithoutCancel(ctx), text)
	if err != nil {
		return err
	}
	go s.run(t)
	return nil
}

// Retry 最后一条回复是失败信息时，重新发送最后一条用户消息
func (s *CopilotService) Retry(ctx context.Context) error {
	text, err := s.retryText()
	if err != nil {
		return err
	}
	return s.SendMessage(ctx, text)
}

// SubmitRetry Retry 的后台版本
func (s *CopilotService) SubmitRetry(ctx context.Context) error {
	text, err := s.retryText()
	if err != nil {
		return err
	}
	return s.Submit(ctx, text)
}

func (s *CopilotService) retryText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.streaming {
		return "", ErrTurnInProgress
	}
	var lastUser, lastAssistant *model.Message
	for i := len(s.state.messages) - 1; i >= 0; i-- {
		m := &s.state.messages[i]
		if m.Role == model.RoleAssistant && lastAssistant == nil {
			lastAssistant = m
		}
		if m.Role == model.RoleUser && lastUser == nil {
			lastUser = m
		}
	}
	if lastUser == nil || lastAssistant == nil || !retryablePattern.MatchString(lastAssistant.Content) {
		return "", ErrNothingToRetry
	}
	return lastUser.Content, nil
}

// ResetConversation 开始新对话：清空消息与工具调用状态并分配新 ID，已保存的对话不受影响
// 进行中的一轮会被放弃
func (s *CopilotService) ResetConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.logger.Info().Msg("turn abandoned by reset")
		s.active.cancel()
		s.active = nil
	}
	s.state = reset(id.New(), time.Now())
	s.bus.publish(s.state.snapshot())
}

// Conversations 已保存的对话，按更新时间倒序
func (s *CopilotService) Conversations(ctx context.Context) []model.Conversation {
	if s.repo == nil {
		return nil
	}
	return s.repo.List(ctx)
}

// OpenConversation 切换到已保存的对话
func (s *CopilotService) OpenConversation(ctx context.Context, conversationID string) error {
	if s.repo == nil {
		return ErrConversationNotFound
	}
	conv, ok := s.repo.Get(ctx, conversationID)
	if !ok {
		return ErrConversationNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.streaming {
		return ErrTurnInProgress
	}
	s.state = stateFromConversation(*conv)
	s.bus.publish(s.state.snapshot())
	return nil
}

// RemoveConversation 删除已保存的对话，当前对话仍保留在内存中
func (s *CopilotService) RemoveConversation(ctx context.Context, conversationID string) {
	if s.repo == nil {
		return
	}
	s.repo.Remove(ctx, conversationID)
}

func (s *CopilotService) currentToolClient() (tools.Client, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolClient, s.toolGen
}

// begin 检查前置条件，同步追加 user 与 assistant 占位消息
func (s *CopilotService) begin(ctx context.Context, text string) (*turn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if s.IsStreaming() {
		return nil, ErrTurnInProgress
	}
	if s.backend == nil {
		return nil, ErrDisabled
	}

	client, gen := s.currentToolClient()
	catalog, err := s.catalog.Load(ctx, client, gen)
	if err != nil {
		return nil, err
	}
	if !catalog.Enabled {
		return nil, ErrDisabled
	}

	allowed := tools.FilterAllowed(catalog.Tools, s.cfg.ToolAllowList)
	infos, errs := ai.ToToolInfos(allowed)
	for _, e := range errs {
		log.Warn().Err(e).Msg("skipping tool with unusable schema")
	}

	hostCtx := s.provider(ctx)
	now := time.Now()
	user := model.Message{ID: id.New(), Role: model.RoleUser, Content: trimmed, Timestamp: now}
	assistant := model.Message{ID: id.New(), Role: model.RoleAssistant, Timestamp: now}

	s.mu.Lock()
	if s.state.streaming {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}

	outbound := make([]*schema.Message, 0, len(s.state.messages)+2)
	outbound = append(outbound, schema.SystemMessage(ai.BuildSystemPrompt(hostCtx)))
	outbound = append(outbound, ai.ToLLMHistory(s.state.messages)...)
	outbound = append(outbound, schema.UserMessage(trimmed))

	turnCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	t := &turn{
		ctx:      turnCtx,
		cancel:   cancel,
		outbound: outbound,
		tools:    infos,
		executor: tools.NewExecutor(client, s.cfg.ToolTimeout),
		logger: logger.Component("copilot").With().
			Str("conversation_id", s.state.conversationID).
			Str("message_id", assistant.ID).
			Logger(),
	}
	s.active = t
	s.state = userSubmitted(s.state, user, assistant)
	s.bus.publish(s.state.snapshot())
	conv := s.state.conversation(s.cfg.TitleMaxLen, now)
	s.mu.Unlock()

	s.persist(ctx, conv)
	t.logger.Info().Int("tools", len(infos)).Int("history", len(outbound)-2).Msg("turn started")
	return t, nil
}

// run 运行一轮对话直到结束或超时
func (s *CopilotService) run(t *turn) {
	defer t.cancel()
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error().Interface("panic", r).Msg("turn panicked")
				done <- errors.New("internal error")
			}
		}()
		done <- s.runRounds(t)
	}()

	var err error
	select {
	case err = <-done:
	case <-t.ctx.Done():
		if errors.Is(t.ctx.Err(), context.DeadlineExceeded) {
			err = &TurnTimeoutError{Timeout: s.cfg.TurnTimeout}
		} else {
			err = t.ctx.Err()
		}
	}

	// runRounds 因 ctx 超时而先返回时，按超时处理
	if err != nil && errors.Is(t.ctx.Err(), context.DeadlineExceeded) {
		err = &TurnTimeoutError{Timeout: s.cfg.TurnTimeout}
	}

	s.finish(t, err, time.Since(start))
}

// runRounds 循环：流式读取 → 检测工具调用 → 并发执行 → 回填结果，直到某一轮没有工具调用
func (s *CopilotService) runRounds(t *turn) error {
	for round := 1; ; round++ {
		logger := t.logger.With().Int("round", round).Logger()

		sr, err := s.backend.StreamCompletions(t.ctx, t.outbound, t.tools)
		if err != nil {
			return &StreamTransportError{Round: round, Err: err}
		}

		content, calls, err := s.consume(t, sr)
		if err != nil {
			return &StreamTransportError{Round: round, Err: err}
		}
		if len(calls) == 0 {
			logger.Debug().Int("content_len", len(content)).Msg("round settled without tool calls")
			return nil
		}

		logger.Info().Int("tool_calls", len(calls)).Msg("tool calls declared")
		t.outbound = append(t.outbound, schema.AssistantMessage(content, ai.ToSchemaToolCalls(calls)))

		running := make([]model.ToolCallState, len(calls))
		for i, call := range calls {
			running[i] = t.executor.Begin(call)
		}
		if !s.apply(t, func(st turnState) turnState {
			return toolStarted(toolsDeclared(st, calls), running)
		}) {
			return nil
		}

		outcomes := make(chan tools.Outcome, len(running))
		for _, r := range running {
			go func(r model.ToolCallState) {
				outcomes <- t.executor.Execute(t.ctx, r)
			}(r)
		}

		// 按完成顺序回填
		for i := 0; i < len(running); i++ {
			var out tools.Outcome
			select {
			case out = <-outcomes:
			case <-t.ctx.Done():
				return t.ctx.Err()
			}

			if out.Err != nil {
				logger.Warn().Err(out.Err).Str("tool", out.State.Name).Msg("tool call failed")
			}
			msg := model.Message{
				ID:         id.New(),
				Role:       model.RoleTool,
				Content:    out.Content,
				Timestamp:  time.Now(),
				ToolCallID: out.State.ID,
				Name:       out.State.Name,
			}
			if !s.apply(t, func(st turnState) turnState {
				return toolMessageAppended(toolSettled(st, out.State), msg)
			}) {
				return nil
			}
			s.persistCurrent(t)
			t.outbound = append(t.outbound, ai.ToLLMMessage(msg))
		}
	}
}

// consume 单一消费循环：内容增量进入内容缓冲，工具调用片段进入累加器
func (s *CopilotService) consume(t *turn, sr *schema.StreamReader[*schema.Message]) (string, []model.ToolCallDecl, error) {
	defer sr.Close()

	acc := ai.NewToolCallAccumulator()
	var buf strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf.String(), nil, err
		}
		if chunk == nil {
			continue
		}

		if ai.IsToolCallChunk(chunk) {
			acc.Add(chunk)
			continue
		}
		if chunk.Content == "" {
			continue
		}
		buf.WriteString(chunk.Content)
		content := buf.String()
		if !s.apply(t, func(st turnState) turnState { return contentDelta(st, content) }) {
			return content, nil, nil
		}
	}
	return buf.String(), acc.Calls(), nil
}

// apply 在锁内对当前轮应用状态转换并推送快照；该轮已结束或被放弃时返回 false
func (s *CopilotService) apply(t *turn, fn func(turnState) turnState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != t {
		return false
	}
	s.state = fn(s.state)
	s.bus.publish(s.state.snapshot())
	return true
}

// finish 结束一轮：写入最终内容、清除 streaming 并持久化
func (s *CopilotService) finish(t *turn, err error, elapsed time.Duration) {
	s.mu.Lock()
	if s.active != t {
		s.mu.Unlock()
		return
	}

	current := ""
	if m, ok := s.state.assistant(); ok {
		current = m.Content
	}
	content := finalContent(current, s.state.contentReceived, err)

	s.active = nil
	s.state = settled(s.state, content)
	s.bus.publish(s.state.snapshot())
	conv := s.state.conversation(s.cfg.TitleMaxLen, time.Now())
	s.mu.Unlock()

	if err != nil {
		t.logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("turn settled with error")
	} else {
		t.logger.Info().Dur("elapsed", elapsed).Msg("turn settled")
	}

	s.persist(context.WithoutCancel(t.ctx), conv)
}

// finalContent 决定结束时的 assistant 内容
func finalContent(current string, contentReceived bool, err error) string {
	var timeout *TurnTimeoutError
	switch {
	case errors.As(err, &timeout):
		if !contentReceived {
			return FallbackContent
		}
		return "Error: " + timeout.Error()
	case err != nil:
		msg := err.Error()
		if strings.TrimSpace(msg) == "" {
			return FallbackContent
		}
		return "Error: " + msg
	case !contentReceived:
		return FallbackContent
	default:
		return current
	}
}

func (s *CopilotService) persistCurrent(t *turn) {
	s.mu.Lock()
	if s.active != t {
		s.mu.Unlock()
		return
	}
	conv := s.state.conversation(s.cfg.TitleMaxLen, time.Now())
	s.mu.Unlock()

	s.persist(context.WithoutCancel(t.ctx), conv)
}

func (s *CopilotService) persist(ctx context.Context, conv model.Conversation) {
	if s.repo == nil {
		return
	}
	s.repo.Save(ctx, conv)
}
