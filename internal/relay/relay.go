// Package relay contains the orchestrator that turns one verified inbound
// message into one multi-language reply.
//
// Per message the orchestrator walks Received → Claimed → Translating →
// Composed → Delivered, short-circuiting to Duplicate when the dedup claim
// loses, or ending in DeliveryFailed when the outbound retry budget is
// exhausted. The dedup claim happens before any network work; it is the sole
// gate against duplicate replies from redelivered webhooks.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/compose"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/lang"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/store"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/translate"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/util"
)

// Default retry configuration
const (
	// DefaultAttempts is the per-call attempt budget for translation and send.
	DefaultAttempts = 3
	// DefaultCallTimeout bounds each individual provider/transport call.
	DefaultCallTimeout = 15 * time.Second
	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = 500 * time.Millisecond
)

// Sender delivers the composed reply to the originating chat identity.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// FailureReporter receives permanent delivery failures. The sender gets no
// reply in that case, so the failure must surface to operators here.
type FailureReporter interface {
	ReportDeliveryFailure(messageID, recipient string, err error)
}

// slogReporter is the default FailureReporter.
type slogReporter struct{}

func (slogReporter) ReportDeliveryFailure(messageID, recipient string, err error) {
	slog.Error("Relay delivery permanently failed", "message_id", messageID, "recipient", recipient, "error", err)
}

// Opts holds configuration options for the orchestrator.
type Opts struct {
	Targets     []string
	Attempts    int
	CallTimeout time.Duration
	BackoffBase time.Duration
	Reporter    FailureReporter
}

// Option defines a configuration option for the orchestrator.
type Option func(*Opts)

// WithTargets sets the default ordered target-language list.
func WithTargets(targets []string) Option {
	return func(o *Opts) { o.Targets = targets }
}

// WithAttempts sets the per-call retry attempt budget.
func WithAttempts(n int) Option {
	return func(o *Opts) { o.Attempts = n }
}

// WithCallTimeout sets the per-call timeout for provider and transport calls.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Opts) { o.CallTimeout = d }
}

// WithBackoffBase sets the initial retry backoff delay.
func WithBackoffBase(d time.Duration) Option {
	return func(o *Opts) { o.BackoffBase = d }
}

// WithReporter sets the delivery failure reporter.
func WithReporter(r FailureReporter) Option {
	return func(o *Opts) { o.Reporter = r }
}

// Orchestrator coordinates one relay per inbound message. Invocations for
// different messages run fully independently; the only shared mutable state
// is the dedup store.
type Orchestrator struct {
	translator translate.Translator
	sender     Sender
	st         store.Store
	cfg        Opts
}

// NewOrchestrator creates an orchestrator with the given collaborators.
func NewOrchestrator(translator translate.Translator, sender Sender, st store.Store, opts ...Option) *Orchestrator {
	cfg := Opts{
		Targets:     lang.DefaultTargets,
		Attempts:    DefaultAttempts,
		CallTimeout: DefaultCallTimeout,
		BackoffBase: DefaultBackoffBase,
		Reporter:    slogReporter{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{translator: translator, sender: sender, st: st, cfg: cfg}
}

// ProcessMessage runs the full relay for one inbound message and returns the
// terminal state it reached.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg models.InboundMessage) (models.RelayState, error) {
	if err := msg.Validate(); err != nil {
		slog.Warn("Orchestrator.ProcessMessage: invalid inbound message", "message_id", msg.ID, "error", err)
		return models.RelayStateReceived, err
	}
	slog.Debug("Orchestrator.ProcessMessage: message received", "message_id", msg.ID, "from", msg.From, "body_length", len(msg.Body))

	// Claim before any translation work. If the claim cannot be decided the
	// message is NOT processed: replying without a claim could duplicate.
	claimed, err := o.st.ClaimInbound(msg.ID, msg.From)
	if err != nil {
		slog.Error("Orchestrator.ProcessMessage: dedup claim failed", "message_id", msg.ID, "error", err)
		return models.RelayStateReceived, err
	}
	if !claimed {
		slog.Info("Orchestrator.ProcessMessage: duplicate delivery ignored", "message_id", msg.ID, "from", msg.From)
		o.record(msg, models.RelayStateDuplicate, "", nil)
		return models.RelayStateDuplicate, nil
	}
	slog.Debug("Orchestrator.ProcessMessage: message claimed", "message_id", msg.ID)

	targets := o.resolveTargets(msg.From)
	sourceLang := o.detectSource(ctx, msg)

	results := o.fanOut(ctx, msg.Body, sourceLang, targets)

	reply := compose.NewComposer(targets).Compose(msg.Body, sourceLang, results)
	slog.Debug("Orchestrator.ProcessMessage: reply composed", "message_id", msg.ID, "reply_length", len(reply))

	sendOp := func(callCtx context.Context) error {
		return o.sender.SendMessage(callCtx, msg.From, reply)
	}
	if err := retryWithBackoff(ctx, o.cfg.Attempts, o.cfg.BackoffBase, o.cfg.CallTimeout, sendOp); err != nil {
		o.cfg.Reporter.ReportDeliveryFailure(msg.ID, msg.From, err)
		o.record(msg, models.RelayStateDeliveryFailed, sourceLang, err)
		return models.RelayStateDeliveryFailed, err
	}

	slog.Info("Orchestrator.ProcessMessage: reply delivered", "message_id", msg.ID, "to", msg.From, "targets", targets)
	o.record(msg, models.RelayStateDelivered, sourceLang, nil)
	return models.RelayStateDelivered, nil
}

// resolveTargets returns the sender's saved preferences, falling back to the
// configured default list.
func (o *Orchestrator) resolveTargets(sender string) []string {
	saved, err := o.st.GetTargetLanguages(sender)
	if err != nil {
		slog.Warn("Orchestrator.resolveTargets: preference lookup failed, using defaults", "sender", sender, "error", err)
		return o.cfg.Targets
	}
	if len(saved) == 0 {
		return o.cfg.Targets
	}
	slog.Debug("Orchestrator.resolveTargets: using saved preferences", "sender", sender, "targets", saved)
	return saved
}

// detectSource performs best-effort source detection. Failure degrades the
// reply to an unknown-source label only; the translate calls auto-detect.
func (o *Orchestrator) detectSource(ctx context.Context, msg models.InboundMessage) string {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	detected, err := o.translator.Detect(callCtx, msg.Body)
	if err != nil {
		slog.Warn("Orchestrator.detectSource: detection failed, continuing without source", "message_id", msg.ID, "error", err)
		return ""
	}

	normalized := lang.Normalize(detected)
	slog.Debug("Orchestrator.detectSource: source detected", "message_id", msg.ID, "detected", detected, "normalized", normalized)
	return normalized
}

// fanOut translates the body into every target concurrently and waits for all
// branches to settle. A branch failure never aborts its siblings; it becomes
// that branch's result.
func (o *Orchestrator) fanOut(ctx context.Context, body, sourceLang string, targets []string) []models.TranslationResult {
	results := make([]models.TranslationResult, len(targets))
	var wg sync.WaitGroup

	for i, target := range targets {
		if target == sourceLang {
			// The original already is this language; no provider call needed.
			results[i] = models.TranslationResult{Lang: target, Text: body, IsSource: true}
			continue
		}

		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()

			var translated string
			op := func(callCtx context.Context) error {
				var opErr error
				translated, opErr = o.translator.Translate(callCtx, body, target)
				return opErr
			}
			if err := retryWithBackoff(ctx, o.cfg.Attempts, o.cfg.BackoffBase, o.cfg.CallTimeout, op); err != nil {
				slog.Warn("Orchestrator.fanOut: branch failed permanently", "target", target, "error", err)
				results[i] = models.TranslationResult{Lang: target, Err: err}
				return
			}
			results[i] = models.TranslationResult{Lang: target, Text: translated}
		}(i, target)
	}

	wg.Wait()
	return results
}

// record appends the audit record for a terminal state. Audit failures are
// logged but never fail the relay.
func (o *Orchestrator) record(msg models.InboundMessage, state models.RelayState, sourceLang string, relayErr error) {
	rec := models.RelayRecord{
		ID:         util.GenerateRelayID(),
		MessageID:  msg.ID,
		Sender:     msg.From,
		State:      state,
		SourceLang: sourceLang,
		Time:       time.Now().Unix(),
	}
	if relayErr != nil {
		rec.Error = relayErr.Error()
	}
	if err := o.st.AddRelay(rec); err != nil {
		slog.Error("Orchestrator.record: failed to write audit record", "message_id", msg.ID, "state", state, "error", err)
	}
}
