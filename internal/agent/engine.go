package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Collaborator call deadlines. Timeouts surface as a distinct failure
// reason, never as a generic error.
const (
	DefaultFetchTimeout     = 30 * time.Second
	DefaultReasoningTimeout = 60 * time.Second

	// Window used to execute translated range expressions.
	defaultQueryWindow = time.Hour
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	FetchTimeout     time.Duration
	ReasoningTimeout time.Duration
	TurnCap          int
	ContextMetrics   []string
	Step             time.Duration
	Archiver         Archiver
}

// Engine exposes the four caller operations over the core components.
// Each request runs independently; the conversation store is the only
// shared mutable state.
type Engine struct {
	backend       MetricsBackend
	llm           Generator
	fetcher       *ContextFetcher
	translator    *QueryTranslator
	health        *HealthSynthesizer
	investigator  *AlertInvestigator
	conversations *ConversationStore

	fetchTimeout     time.Duration
	reasoningTimeout time.Duration
	tracer           trace.Tracer
}

// NewEngine wires the components around the two collaborators.
func NewEngine(backend MetricsBackend, llm Generator, opts Options) *Engine {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.ReasoningTimeout <= 0 {
		opts.ReasoningTimeout = DefaultReasoningTimeout
	}

	timed := &timedGenerator{inner: llm}

	return &Engine{
		backend:          backend,
		llm:              timed,
		fetcher:          NewContextFetcher(backend, opts.ContextMetrics, opts.Step),
		translator:       NewQueryTranslator(timed),
		health:           NewHealthSynthesizer(timed),
		investigator:     NewAlertInvestigator(timed),
		conversations:    NewConversationStore(opts.TurnCap, opts.Archiver),
		fetchTimeout:     opts.FetchTimeout,
		reasoningTimeout: opts.ReasoningTimeout,
		tracer:           otel.Tracer("agent-engine"),
	}
}

// Conversations exposes the store so the hosting process can drive
// eviction; the engine never evicts on its own.
func (e *Engine) Conversations() *ConversationStore {
	return e.conversations
}

// TranslateQuery converts a question into PromQL and executes the result.
// Execution failure leaves ExecutedResult nil without failing the
// translation; confidence reflects translator certainty, not execution.
func (e *Engine) TranslateQuery(ctx context.Context, question string) (result *TranslationResult, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.translate_query")
	defer span.End()
	defer func() { recordOperation("translate", err) }()

	// Reject bad input before any collaborator round trip, so a blank
	// question never surfaces as a backend failure.
	if strings.TrimSpace(question) == "" {
		return nil, failf("engine.translate_query", TagInvalidInput, "question is empty")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	names, nerr := e.backend.MetricNames(fetchCtx)
	if nerr != nil {
		return nil, classify("engine.translate_query", nerr)
	}

	reasonCtx, cancelReason := context.WithTimeout(ctx, e.reasoningTimeout)
	defer cancelReason()
	result, err = e.translator.Translate(reasonCtx, question, names)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("generated_query", result.GeneratedQuery))

	if series, eerr := e.execute(ctx, result.GeneratedQuery); eerr != nil {
		log.Printf("Generated query %q failed to execute: %v", result.GeneratedQuery, eerr)
	} else {
		result.ExecutedResult = &series
	}

	return result, nil
}

// execute runs a generated expression: range query over the default
// window for rate/increase expressions, instant query otherwise.
func (e *Engine) execute(ctx context.Context, expr string) (Series, error) {
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	now := time.Now()
	if isRangeExpression(expr) {
		return e.backend.RangeQuery(ctx, expr, now.Add(-defaultQueryWindow), now, DefaultStep)
	}
	return e.backend.InstantQuery(ctx, expr, now)
}

// AssessHealth fetches context for the window and synthesizes a health
// assessment. The numeric score survives reasoning-backend failures.
func (e *Engine) AssessHealth(ctx context.Context, window time.Duration) (result *HealthAssessment, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.assess_health")
	defer span.End()
	defer func() { recordOperation("assess", err) }()

	if window < 0 {
		return nil, failf("engine.assess_health", TagInvalidInput, "negative time window %v", window)
	}
	if window == 0 {
		window = defaultQueryWindow
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	end := time.Now()
	samples, alerts, ferr := e.fetcher.Fetch(fetchCtx, end.Add(-window), end)
	if ferr != nil {
		return nil, ferr
	}

	reasonCtx, cancelReason := context.WithTimeout(ctx, e.reasoningTimeout)
	defer cancelReason()
	assessment := e.health.Assess(reasonCtx, samples, alerts)
	if assessment.Degraded {
		degradedResponsesTotal.WithLabelValues("assess").Inc()
	}
	span.SetAttributes(attribute.Float64("health_score", assessment.Score))

	return assessment, nil
}

// InvestigateAlert investigates a named alert from the current active
// set. An unknown name surfaces as alert-not-found, never fabricated.
func (e *Engine) InvestigateAlert(ctx context.Context, alertName string) (result *InvestigationResult, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.investigate_alert")
	defer span.End()
	defer func() { recordOperation("investigate", err) }()

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	alerts, aerr := e.backend.ActiveAlerts(fetchCtx)
	if aerr != nil {
		return nil, classify("engine.investigate_alert", aerr)
	}

	related := make(SampleSet)
	for _, alert := range alerts {
		if alert.Name == alertName {
			related = e.fetcher.RelatedMetrics(fetchCtx, alert)
			break
		}
	}

	reasonCtx, cancelReason := context.WithTimeout(ctx, e.reasoningTimeout)
	defer cancelReason()
	result, err = e.investigator.Investigate(reasonCtx, alertName, alerts, related)
	if err != nil {
		return nil, err
	}
	if result.Degraded {
		degradedResponsesTotal.WithLabelValues("investigate").Inc()
	}

	return result, nil
}

// ChatTurn runs one conversational exchange. Turns are appended only
// after a response is obtained, so an abandoned reasoning call leaves no
// partial write in conversation state.
func (e *Engine) ChatTurn(ctx context.Context, conversationID, message string) (result *ChatResult, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.chat_turn")
	defer span.End()
	defer func() { recordOperation("chat", err) }()

	if strings.TrimSpace(message) == "" {
		return nil, failf("engine.chat_turn", TagInvalidInput, "message is empty")
	}

	conv := e.conversations.GetOrCreate(conversationID)
	history := e.conversations.ContextFor(conv.ID)

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	summary, samples := e.fetcher.SystemSummary(fetchCtx)
	cancel()

	prompt := fmt.Sprintf(`You are assisting an operator with questions about a Prometheus-monitored system.
%s

Answer the operator's message using the conversation history and current state. Be specific and actionable.

Operator: %s`, summary, message)

	turns := make([]map[string]string, 0, len(history))
	for _, turn := range history {
		turns = append(turns, map[string]string{"role": string(turn.Role), "text": turn.Text})
	}

	reasonCtx, cancelReason := context.WithTimeout(ctx, e.reasoningTimeout)
	defer cancelReason()
	reply, gerr := e.llm.Generate(reasonCtx, prompt, map[string]interface{}{
		"conversation_history": turns,
	})
	if gerr != nil {
		return nil, classify("engine.chat_turn", gerr)
	}

	e.conversations.AppendTurn(conv.ID, RoleUser, message)
	e.conversations.AppendTurn(conv.ID, RoleAgent, reply)
	if samples != nil {
		e.conversations.SetLastContext(conv.ID, samples)
	}

	return &ChatResult{ConversationID: conv.ID, Reply: reply}, nil
}

// Recommendations asks the reasoning backend for monitoring-improvement
// suggestions grounded in the currently exposed metric names.
func (e *Engine) Recommendations(ctx context.Context, systemDescription string) (recommendations string, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.recommendations")
	defer span.End()
	defer func() { recordOperation("recommendations", err) }()

	if systemDescription == "" {
		systemDescription = "Generic system monitoring setup"
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	names, nerr := e.backend.MetricNames(fetchCtx)
	if nerr != nil {
		return "", classify("engine.recommendations", nerr)
	}
	if len(names) > 100 {
		names = names[:100]
	}

	prompt := fmt.Sprintf(`Suggest monitoring improvements for this system: %s
Cover missing critical metrics, useful alerting rules and dashboards.`, systemDescription)

	reasonCtx, cancelReason := context.WithTimeout(ctx, e.reasoningTimeout)
	defer cancelReason()
	reply, gerr := e.llm.Generate(reasonCtx, prompt, map[string]interface{}{
		"current_metrics": names,
	})
	if gerr != nil {
		return "", classify("engine.recommendations", gerr)
	}

	return reply, nil
}

// timedGenerator records reasoning call latency around the wrapped
// generator.
type timedGenerator struct {
	inner Generator
}

func (g *timedGenerator) Generate(ctx context.Context, prompt string, structured map[string]interface{}) (string, error) {
	start := time.Now()
	response, err := g.inner.Generate(ctx, prompt, structured)
	reasoningDurationSeconds.Observe(time.Since(start).Seconds())
	return response, err
}
