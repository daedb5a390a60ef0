package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/pkg/apperror"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/metrics"
	"rag-chat-be/internal/pkg/workerpool"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/generation"
	"rag-chat-be/pkg/rag/policy"
	"rag-chat-be/pkg/rag/prompt"
	"rag-chat-be/pkg/rag/retrieval"
	"rag-chat-be/pkg/rag/suggestion"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrPipelineClosed = errors.New("chat pipeline is shutting down")

type TurnState string

const (
	TurnReceived   TurnState = "received"
	TurnPersisted  TurnState = "persisted"
	TurnRetrieving TurnState = "retrieving"
	TurnGenerating TurnState = "generating"
	TurnPersisting TurnState = "persisting"
	TurnCompleted  TurnState = "completed"
	TurnFailed     TurnState = "failed"
)

// ConversationStore is the part of the conversation service a turn writes through.
type ConversationStore interface {
	CreateConversation(ctx context.Context, ownerId uuid.UUID, title string) (*entity.Conversation, error)
	Authorize(ctx context.Context, conversationId, userId uuid.UUID, isAdmin bool) (*entity.Conversation, error)
	AppendMessage(ctx context.Context, conversationId uuid.UUID, content string, sender entity.Sender, language string, sources ...entity.MessageSource) (*entity.Message, error)
	RecentMessages(ctx context.Context, conversationId uuid.UUID, before time.Time, n int) ([]*entity.Message, error)
	Delete(ctx context.Context, conversationId, ownerId uuid.UUID) error
}

// Broadcaster delivers socket events. The session registry implements it.
type Broadcaster interface {
	Broadcast(conversationID uuid.UUID, event dto.SocketEvent) error
	Send(sessionID string, event dto.SocketEvent) error
	IsMember(sessionID string, conversationID uuid.UUID) bool
}

// Origin identifies the session a question came from.
type Origin struct {
	SessionID string
	UserID    uuid.UUID
	IsAdmin   bool
	RequestID string
}

type PipelineOptions struct {
	TopK              int
	HistoryLimit      int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	SuggestionTimeout time.Duration
	MaxTokens         int
	Temperature       float64
	DefaultLanguage   string
	IndexLanguage     string
	TranslateQueries  bool
	// TranslateTimeout caps query translation inside RetrievalTimeout. Zero
	// or anything not below RetrievalTimeout means half of it.
	TranslateTimeout  time.Duration
	NoAnswerPhrases   []string
}

type IChatPipeline interface {
	HandleQuestion(ctx context.Context, origin Origin, req *dto.AskRequest) (*dto.AskAck, error)
	Shutdown(ctx context.Context) error
}

type turn struct {
	id             uuid.UUID
	origin         Origin
	conversationID uuid.UUID
	question       string
	language       string
	receivedAt     time.Time
	// released is closed once the origin has its ack; the drain waits on it.
	released chan struct{}

	mu      sync.Mutex
	state   TurnState
	emitted bool
}

func (t *turn) setState(s TurnState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *turn) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// conversationQueue holds the turns waiting behind the running one.
type conversationQueue struct {
	mu      sync.Mutex
	pending []*turn
	running bool
}

type jobResult struct {
	passages []retrieval.Passage
	answer   string
	err      error
}

type chatPipeline struct {
	store       ConversationStore
	assistant   rag.Assistant
	translator  retrieval.Translator
	broadcaster Broadcaster
	events      TurnEventPublisher
	pool        *workerpool.Pool
	opts        PipelineOptions
	logger      logger.ILogger
	tracer      trace.Tracer
	mapper      *mapper.ConversationMapper

	// queuesMu guards the queue index and closing. Lock order: queuesMu, then a queue's mu.
	queuesMu sync.Mutex
	queues   map[uuid.UUID]*conversationQueue
	closing  bool

	drains  sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewChatPipeline(
	store ConversationStore,
	assistant rag.Assistant,
	translator retrieval.Translator,
	broadcaster Broadcaster,
	events TurnEventPublisher,
	pool *workerpool.Pool,
	opts PipelineOptions,
	log logger.ILogger,
) IChatPipeline {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	if opts.NoAnswerPhrases == nil {
		opts.NoAnswerPhrases = policy.DefaultNoAnswerPhrases()
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.TranslateTimeout <= 0 || opts.TranslateTimeout >= opts.RetrievalTimeout {
		opts.TranslateTimeout = opts.RetrievalTimeout / 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &chatPipeline{
		store:       store,
		assistant:   assistant,
		translator:  translator,
		broadcaster: broadcaster,
		events:      events,
		pool:        pool,
		opts:        opts,
		logger:      log,
		tracer:      otel.Tracer("rag-chat-be/chat-pipeline"),
		mapper:      mapper.NewConversationMapper(),
		queues:      make(map[uuid.UUID]*conversationQueue),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// HandleQuestion validates and queues a question. The ack is sent to the origin
// session before the turn can start, so it always precedes the turn's events.
// The answer is delivered through the broadcaster.
func (p *chatPipeline) HandleQuestion(ctx context.Context, origin Origin, req *dto.AskRequest) (*dto.AskAck, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperror.Validation("question must not be empty")
	}
	if utf8.RuneCountInString(question) > constant.MaxQuestionRunes {
		return nil, apperror.Validation(fmt.Sprintf("question must be at most %d characters", constant.MaxQuestionRunes))
	}
	if origin.UserID == uuid.Nil {
		return nil, apperror.New(apperror.ErrAuthRequired, "sign in to ask questions")
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = p.opts.DefaultLanguage
	}

	if p.isClosing() {
		return nil, ErrPipelineClosed
	}

	var (
		conversation *entity.Conversation
		created      bool
		err          error
	)
	if req.ConversationId != nil && *req.ConversationId != uuid.Nil {
		conversation, err = p.store.Authorize(ctx, *req.ConversationId, origin.UserID, origin.IsAdmin)
	} else {
		conversation, err = p.store.CreateConversation(ctx, origin.UserID, deriveTitle(question))
		created = true
	}
	if err != nil {
		return nil, err
	}

	t := &turn{
		id:             uuid.New(),
		origin:         origin,
		conversationID: conversation.Id,
		question:       question,
		language:       language,
		receivedAt:     time.Now(),
		released:       make(chan struct{}),
		state:          TurnReceived,
	}
	if err := p.enqueue(t); err != nil {
		if created {
			p.discardConversation(conversation)
		}
		return nil, err
	}

	ack := &dto.AskAck{
		Status:         constant.AckStatusProcessing,
		ConversationId: conversation.Id,
		TurnId:         t.id,
		Created:        created,
	}
	p.acknowledge(t, ack)
	close(t.released)

	p.logger.Info(constant.ModuleChatPipeline, "Turn received", map[string]interface{}{
		"turn_id":         t.id,
		"conversation_id": t.conversationID,
		"session_id":      origin.SessionID,
		"created":         created,
	})
	return ack, nil
}

func (p *chatPipeline) acknowledge(t *turn, ack *dto.AskAck) {
	if t.origin.SessionID == "" {
		return
	}
	err := p.broadcaster.Send(t.origin.SessionID, dto.SocketEvent{
		Type:      constant.EventAck,
		Data:      ack,
		RequestId: t.origin.RequestID,
	})
	if err != nil {
		p.logger.Debug(constant.ModuleChatPipeline, "Origin gone before ack", map[string]interface{}{
			"turn_id":    t.id,
			"session_id": t.origin.SessionID,
		})
	}
}

func (p *chatPipeline) isClosing() bool {
	p.queuesMu.Lock()
	defer p.queuesMu.Unlock()
	return p.closing
}

// discardConversation removes a conversation created for a turn that was never queued.
func (p *chatPipeline) discardConversation(c *entity.Conversation) {
	if err := p.store.Delete(context.Background(), c.Id, c.OwnerId); err != nil {
		p.logger.Warn(constant.ModuleChatPipeline, "Failed to discard unused conversation", map[string]interface{}{
			"conversation_id": c.Id,
			"error":           err.Error(),
		})
	}
}

// Shutdown stops accepting questions and waits for queued turns to finish.
// When ctx ends first, in-flight turns are cancelled.
func (p *chatPipeline) Shutdown(ctx context.Context) error {
	p.queuesMu.Lock()
	p.closing = true
	p.queuesMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.drains.Wait()
		p.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func deriveTitle(question string) string {
	runes := []rune(strings.Join(strings.Fields(question), " "))
	if len(runes) == 0 {
		return constant.DefaultConversationTitle
	}
	if len(runes) > constant.DerivedTitleRunes {
		return strings.TrimSpace(string(runes[:constant.DerivedTitleRunes])) + "..."
	}
	return string(runes)
}

func (p *chatPipeline) enqueue(t *turn) error {
	p.queuesMu.Lock()
	if p.closing {
		p.queuesMu.Unlock()
		return ErrPipelineClosed
	}

	q, ok := p.queues[t.conversationID]
	if !ok {
		q = &conversationQueue{}
		p.queues[t.conversationID] = q
	}

	q.mu.Lock()
	q.pending = append(q.pending, t)
	start := !q.running
	q.running = true
	q.mu.Unlock()

	if start {
		p.drains.Add(1)
	}
	p.queuesMu.Unlock()

	metrics.RecordTurnQueued()
	if start {
		go p.drain(t.conversationID, q)
	}
	return nil
}

// drain runs the conversation's turns one at a time until its queue is empty.
func (p *chatPipeline) drain(conversationID uuid.UUID, q *conversationQueue) {
	defer p.drains.Done()
	for {
		t, ok := p.next(conversationID, q)
		if !ok {
			return
		}
		<-t.released
		p.runTurn(t)
	}
}

func (p *chatPipeline) next(conversationID uuid.UUID, q *conversationQueue) (*turn, bool) {
	q.mu.Lock()
	if t, ok := q.pop(); ok {
		q.mu.Unlock()
		return t, true
	}
	q.mu.Unlock()

	p.queuesMu.Lock()
	defer p.queuesMu.Unlock()
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.pop(); ok {
		return t, true
	}
	q.running = false
	if p.queues[conversationID] == q {
		delete(p.queues, conversationID)
	}
	return nil, false
}

func (q *conversationQueue) pop() (*turn, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return t, true
}

func (p *chatPipeline) transition(t *turn, state TurnState) {
	t.setState(state)
	p.logger.Debug(constant.ModuleChatPipeline, "Turn state changed", map[string]interface{}{
		"turn_id":         t.id,
		"conversation_id": t.conversationID,
		"state":           string(state),
	})
}

func (p *chatPipeline) runTurn(t *turn) {
	metrics.RecordTurnStarted()
	started := time.Now()

	ctx, span := p.tracer.Start(p.baseCtx, "chat.turn", trace.WithAttributes(
		attribute.String("turn.id", t.id.String()),
		attribute.String("conversation.id", t.conversationID.String()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(constant.ModuleChatPipeline, "Turn panicked", map[string]interface{}{
				"turn_id": t.id,
				"panic":   fmt.Sprint(r),
			})
			span.SetStatus(codes.Error, "panic")
			p.transition(t, TurnFailed)
			if !t.emitted {
				p.emitError(t, errors.New("internal error"))
			}
		}

		status := constant.TurnStatusCompleted
		if t.State() != TurnCompleted {
			status = constant.TurnStatusFailed
		}
		metrics.RecordTurnFinished(status, time.Since(started))
	}()

	p.execute(ctx, t, started)
}

func (p *chatPipeline) execute(ctx context.Context, t *turn, started time.Time) {
	userMsg, err := p.store.AppendMessage(ctx, t.conversationID, t.question, entity.SenderUser, t.language)
	if err != nil {
		p.fail(ctx, t, started, err)
		return
	}
	p.transition(t, TurnPersisted)
	p.deliver(t, dto.SocketEvent{
		Type: constant.EventMessage,
		Data: dto.ChatMessageEvent{
			MessageId:      userMsg.Id,
			ConversationId: t.conversationID,
			TurnId:         t.id,
			Sender:         string(entity.SenderUser),
			Content:        userMsg.Content,
			Language:       userMsg.Language,
			Timestamp:      userMsg.CreatedAt,
		},
	})

	history, err := p.store.RecentMessages(ctx, t.conversationID, userMsg.CreatedAt, p.opts.HistoryLimit)
	if err != nil {
		p.logger.Warn(constant.ModuleChatPipeline, "History unavailable, answering without it", map[string]interface{}{
			"turn_id": t.id,
			"error":   err.Error(),
		})
		history = nil
	}

	res, timedOut := p.runJob(ctx, t, history)

	answer := ""
	fallback := false
	var suggestions []string
	var sources []entity.MessageSource
	var turnErr error

	switch {
	case timedOut || errors.Is(res.err, generation.ErrGenerationTimeout):
		answer, fallback = policy.TimeoutAnswer, true
		suggestions = suggestion.AfterFailure()
		turnErr = apperror.Wrap(apperror.ErrGenerationTimeout, "generation timed out", res.err)
	case res.err != nil:
		answer, fallback = policy.GenerationErrorAnswer, true
		suggestions = suggestion.AfterFailure()
		turnErr = apperror.Wrap(apperror.ErrGenerationFailed, "generation failed", res.err)
	default:
		answer, fallback = policy.Apply(res.answer, p.opts.NoAnswerPhrases)
		if fallback {
			suggestions = suggestion.Default()
		} else {
			suggestions = p.suggest(ctx, t, answer)
			sources = toSources(res.passages)
		}
	}

	if turnErr != nil {
		p.logger.Error(constant.ModuleChatPipeline, "Turn degraded to fallback answer", map[string]interface{}{
			"turn_id":         t.id,
			"conversation_id": t.conversationID,
			"error":           turnErr.Error(),
		})
	}

	p.transition(t, TurnPersisting)
	assistantMsg, err := p.store.AppendMessage(ctx, t.conversationID, answer, entity.SenderAssistant, t.language, sources...)
	if err != nil {
		p.fail(ctx, t, started, err)
		return
	}

	status := constant.TurnStatusCompleted
	final := TurnCompleted
	if turnErr != nil {
		status, final = constant.TurnStatusFailed, TurnFailed
	}

	p.deliver(t, dto.SocketEvent{
		Type: constant.EventAskResponse,
		Data: dto.AskResponseEvent{
			ConversationId: t.conversationID,
			TurnId:         t.id,
			Status:         status,
			Response:       answer,
			Suggestions:    suggestions,
			Sources:        p.mapper.SourcesToDTO(sources),
			UserMessageId:  userMsg.Id,
			MessageId:      assistantMsg.Id,
			Fallback:       fallback,
			Timestamp:      assistantMsg.CreatedAt,
		},
		RequestId: t.origin.RequestID,
	})
	t.emitted = true
	p.transition(t, final)

	p.publish(ctx, t, TurnEvent{
		Status:      status,
		Answer:      answer,
		Suggestions: suggestions,
		Passages:    len(res.passages),
		Fallback:    fallback,
		Error:       errString(turnErr),
	}, started)

	p.logger.Info(constant.ModuleChatPipeline, "Turn finished", map[string]interface{}{
		"turn_id":         t.id,
		"conversation_id": t.conversationID,
		"status":          status,
		"fallback":        fallback,
		"duration_ms":     time.Since(started).Milliseconds(),
	})
}

// runJob schedules retrieval and generation on the worker pool and waits for
// it under the turn bound. A result that arrives after the bound is dropped.
func (p *chatPipeline) runJob(ctx context.Context, t *turn, history []*entity.Message) (jobResult, bool) {
	bound := p.opts.RetrievalTimeout + p.opts.GenerationTimeout
	jobCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	results := make(chan jobResult, 1)
	err := p.pool.Go(jobCtx, func() {
		defer func() {
			if r := recover(); r != nil {
				results <- jobResult{err: fmt.Errorf("%w: panic: %v", generation.ErrGenerationFailed, r)}
			}
		}()
		results <- p.retrieveAndGenerate(jobCtx, t, history)
	})
	if err != nil {
		return jobResult{err: err}, true
	}

	select {
	case res := <-results:
		return res, false
	case <-jobCtx.Done():
		return jobResult{err: jobCtx.Err()}, true
	}
}

func (p *chatPipeline) retrieveAndGenerate(ctx context.Context, t *turn, history []*entity.Message) jobResult {
	p.transition(t, TurnRetrieving)
	passages := p.retrieve(ctx, t)

	p.transition(t, TurnGenerating)
	genCtx, span := p.tracer.Start(ctx, "chat.generate")
	defer span.End()

	text := prompt.NewContextualBuilder(passages, toLLMHistory(history), t.question, t.language).Build()
	answer, err := p.assistant.Generate(genCtx, text, generation.Options{
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
		Timeout:     p.opts.GenerationTimeout,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return jobResult{passages: passages, answer: answer, err: err}
}

// retrieve never fails the turn: an unavailable index yields no context.
func (p *chatPipeline) retrieve(ctx context.Context, t *turn) []retrieval.Passage {
	ctx, cancel := context.WithTimeout(ctx, p.opts.RetrievalTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "chat.retrieve")
	defer span.End()

	query := p.translateQuery(ctx, t)

	passages, err := p.assistant.Retrieve(ctx, query, p.opts.TopK)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn(constant.ModuleRetrieval, "Retrieval unavailable, continuing without context", map[string]interface{}{
			"turn_id": t.id,
			"error":   apperror.Wrap(apperror.ErrRetrievalUnavailable, "retrieval unavailable", err).Error(),
		})
		passages = nil
	}

	span.SetAttributes(attribute.Int("retrieval.passages", len(passages)))
	metrics.RecordRetrieval(len(passages))
	return passages
}

// translateQuery puts the question into the index language. Translation gets
// its own share of the retrieval budget; past it the original text is searched.
func (p *chatPipeline) translateQuery(ctx context.Context, t *turn) string {
	if p.translator == nil || !p.opts.TranslateQueries || p.opts.IndexLanguage == "" ||
		strings.EqualFold(t.language, p.opts.IndexLanguage) {
		return t.question
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.TranslateTimeout)
	defer cancel()

	translated := strings.TrimSpace(p.translator.Translate(ctx, t.question, t.language, p.opts.IndexLanguage))
	if ctx.Err() != nil || translated == "" {
		p.logger.Warn(constant.ModuleRetrieval, "Query translation unavailable, searching original text", map[string]interface{}{
			"turn_id":  t.id,
			"language": t.language,
		})
		return t.question
	}
	return translated
}

// suggest returns follow-ups for a successful answer, or the static list when
// the generator fails, is slow, or has nothing to offer.
func (p *chatPipeline) suggest(ctx context.Context, t *turn, answer string) []string {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SuggestionTimeout)
	defer cancel()

	type out struct {
		items []string
		err   error
	}
	done := make(chan out, 1)
	go func() {
		items, err := p.assistant.Suggest(ctx, t.question, answer, t.language)
		done <- out{items: items, err: err}
	}()

	var items []string
	select {
	case o := <-done:
		if o.err != nil {
			p.logger.Warn(constant.ModuleSuggestion, "Suggestion generator failed", map[string]interface{}{
				"turn_id": t.id,
				"error":   o.err.Error(),
			})
		}
		items = o.items
	case <-ctx.Done():
		p.logger.Warn(constant.ModuleSuggestion, "Suggestion generator timed out", map[string]interface{}{"turn_id": t.id})
	}

	if len(items) == 0 {
		return suggestion.Default()
	}
	if len(items) > suggestion.MaxSuggestions {
		items = items[:suggestion.MaxSuggestions]
	}
	return items
}

// fail ends the turn with an error event. Messages already written stay.
func (p *chatPipeline) fail(ctx context.Context, t *turn, started time.Time, err error) {
	p.transition(t, TurnFailed)
	p.logger.Error(constant.ModuleChatPipeline, "Turn failed", map[string]interface{}{
		"turn_id":         t.id,
		"conversation_id": t.conversationID,
		"error":           err.Error(),
	})
	trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())

	p.emitError(t, err)
	p.publish(ctx, t, TurnEvent{Status: constant.TurnStatusFailed, Error: err.Error()}, started)
}

func (p *chatPipeline) emitError(t *turn, err error) {
	t.emitted = true
	sendErr := p.broadcaster.Send(t.origin.SessionID, dto.SocketEvent{
		Type:      constant.EventError,
		Data:      dto.ErrorEvent{Code: apperror.Code(err), Message: apperror.Message(err)},
		RequestId: t.origin.RequestID,
	})
	if sendErr != nil {
		p.logger.Debug(constant.ModuleChatPipeline, "Origin session gone, error not delivered", map[string]interface{}{
			"turn_id":    t.id,
			"session_id": t.origin.SessionID,
		})
	}
}

// deliver sends event to the conversation room and to the origin session when
// it is not in the room. A closed origin is skipped silently.
func (p *chatPipeline) deliver(t *turn, event dto.SocketEvent) {
	if err := p.broadcaster.Broadcast(t.conversationID, event); err != nil {
		p.logger.Warn(constant.ModuleChatPipeline, "Broadcast failed", map[string]interface{}{
			"turn_id": t.id,
			"error":   err.Error(),
		})
	}
	if t.origin.SessionID == "" || p.broadcaster.IsMember(t.origin.SessionID, t.conversationID) {
		return
	}
	if err := p.broadcaster.Send(t.origin.SessionID, event); err != nil {
		p.logger.Debug(constant.ModuleChatPipeline, "Origin session gone, event not delivered", map[string]interface{}{
			"turn_id":    t.id,
			"session_id": t.origin.SessionID,
			"event":      event.Type,
		})
	}
}

func (p *chatPipeline) publish(ctx context.Context, t *turn, ev TurnEvent, started time.Time) {
	if p.events == nil {
		return
	}
	ev.TurnId = t.id
	ev.ConversationId = t.conversationID
	ev.UserId = t.origin.UserID
	ev.Question = t.question
	ev.Language = t.language
	ev.DurationMs = time.Since(started).Milliseconds()
	ev.OccurredAt = time.Now()

	if err := p.events.PublishTurn(ctx, ev); err != nil {
		p.logger.Warn(constant.ModuleTurnEvents, "Failed to publish turn event", map[string]interface{}{
			"turn_id": t.id,
			"error":   err.Error(),
		})
	}
}

func toLLMHistory(messages []*entity.Message) []llm.Message {
	history := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleAssistant
		if m.IsUser() {
			role = llm.RoleUser
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	return history
}

const snippetRunes = 200

func toSources(passages []retrieval.Passage) []entity.MessageSource {
	if len(passages) == 0 {
		return nil
	}
	sources := make([]entity.MessageSource, 0, len(passages))
	for _, ps := range passages {
		snippet := []rune(strings.TrimSpace(ps.Text))
		if len(snippet) > snippetRunes {
			snippet = snippet[:snippetRunes]
		}
		sources = append(sources, entity.MessageSource{SourceId: ps.SourceID, Snippet: string(snippet), Score: ps.Score})
	}
	return sources
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
