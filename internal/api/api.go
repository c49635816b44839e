// Package api provides the HTTP surface and runtime wiring for the
// translation relay.
//
// It exposes the Meta webhook endpoints that feed inbound messages into the
// relay, plus operational endpoints for health, relay history, stats, and
// per-sender language preferences. The server also runs the consumption loop
// that moves messages from the transport into the orchestrator.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/messaging"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/relay"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/scheduler"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/store"
)

// Constants for API server configuration
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultSweepSchedule is the cron expression for the periodic dedup sweep.
	DefaultSweepSchedule = "@every 1h"
	// DefaultDedupTTL is how long processed message ids are remembered.
	// WhatsApp stops redelivering webhooks well within a day.
	DefaultDedupTTL = 24 * time.Hour
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	VerifyToken   string
	SweepSchedule string
	DedupTTL      time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the Meta webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithSweepSchedule sets the cron expression for the dedup sweep job.
func WithSweepSchedule(expr string) Option {
	return func(o *Opts) { o.SweepSchedule = expr }
}

// WithDedupTTL sets how long processed message ids are remembered.
func WithDedupTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.DedupTTL = ttl }
}

// Server wires the messaging transport, the relay orchestrator, and storage
// behind the HTTP surface.
type Server struct {
	msgService   messaging.Service
	orchestrator *relay.Orchestrator
	st           store.Store
	sched        *scheduler.Scheduler
	cfg          Opts
}

// NewServer creates an API server around the given collaborators.
func NewServer(msgService messaging.Service, orchestrator *relay.Orchestrator, st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultAddr,
		SweepSchedule: DefaultSweepSchedule,
		DedupTTL:      DefaultDedupTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		msgService:   msgService,
		orchestrator: orchestrator,
		st:           st,
		cfg:          cfg,
	}
}

// Handler builds the HTTP mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/twilio/webhook", s.twilioWebhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/relays", s.relaysHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/preferences/", s.preferencesHandler)
	return mux
}

// Run starts the transport, the consumption loop, the dedup sweep, and the
// HTTP server, then blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.msgService.Start(ctx); err != nil {
		return err
	}

	go s.consumeMessages(ctx)
	go s.consumeReceipts(ctx)

	s.sched = scheduler.NewScheduler()
	if err := s.sched.AddJob(s.cfg.SweepSchedule, s.sweepDedup); err != nil {
		slog.Error("Server.Run: failed to schedule dedup sweep", "schedule", s.cfg.SweepSchedule, "error", err)
		return err
	}
	slog.Info("Server.Run: dedup sweep scheduled", "schedule", s.cfg.SweepSchedule, "ttl", s.cfg.DedupTTL)

	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: HTTP shutdown failed", "error", err)
		}
		s.shutdown()
		return nil
	}
}

func (s *Server) shutdown() {
	if s.sched != nil {
		s.sched.Stop()
	}
	if err := s.msgService.Stop(); err != nil {
		slog.Error("Server.shutdown: failed to stop messaging service", "error", err)
	}
}

// consumeMessages moves inbound messages from the transport into the
// orchestrator. Each message relays in its own goroutine; the dedup claim
// makes concurrent processing of the same id safe.
func (s *Server) consumeMessages(ctx context.Context) {
	for {
		select {
		case msg, ok := <-s.msgService.Messages():
			if !ok {
				slog.Debug("Server.consumeMessages: messages channel closed")
				return
			}
			go func() {
				state, err := s.orchestrator.ProcessMessage(ctx, msg)
				if err != nil {
					slog.Error("Server.consumeMessages: relay failed", "message_id", msg.ID, "state", state, "error", err)
				}
			}()
		case <-ctx.Done():
			return
		}
	}
}

// consumeReceipts drains transport receipts so the channel never blocks.
func (s *Server) consumeReceipts(ctx context.Context) {
	for {
		select {
		case receipt, ok := <-s.msgService.Receipts():
			if !ok {
				return
			}
			slog.Debug("Server.consumeReceipts: receipt", "to", receipt.To, "status", receipt.Status)
		case <-ctx.Done():
			return
		}
	}
}

// sweepDedup removes dedup records older than the configured TTL.
func (s *Server) sweepDedup() {
	cutoff := time.Now().Add(-s.cfg.DedupTTL)
	removed, err := s.st.SweepBefore(cutoff)
	if err != nil {
		slog.Error("Server.sweepDedup: sweep failed", "error", err)
		return
	}
	slog.Info("Server.sweepDedup: sweep complete", "removed", removed, "cutoff", cutoff)
}
