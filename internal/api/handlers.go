// Package api provides HTTP handlers for the translation relay endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/lang"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/messaging"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/metacloud"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/store"
)

// maxWebhookBodySize bounds the webhook payloads we are willing to parse.
const maxWebhookBodySize = 1 << 20

// webhookHandler serves the Meta Cloud API webhook endpoint. GET is the
// subscription verification handshake; POST delivers inbound events.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhookHandler(w, r)
	case http.MethodPost:
		s.receiveWebhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhookHandler answers Meta's subscription handshake. Meta sends
// hub.mode, hub.verify_token, and hub.challenge; a matching token must be
// answered with the raw challenge string.
func (s *Server) verifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || s.cfg.VerifyToken == "" || token != s.cfg.VerifyToken {
		slog.Warn("Server.verifyWebhookHandler: verification failed", "mode", mode, "token_match", token == s.cfg.VerifyToken)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("Server.verifyWebhookHandler: webhook verified")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// receiveWebhookHandler accepts one webhook delivery, acknowledges it
// immediately, and hands the parsed messages to the transport channel. The
// relay runs asynchronously; Meta only needs the 200 acknowledgment.
func (s *Server) receiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		slog.Error("Server.receiveWebhookHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}

	messages, receipts, err := metacloud.ParseWebhook(body)
	if err != nil {
		slog.Warn("Server.receiveWebhookHandler: failed to parse webhook", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid webhook payload"))
		return
	}
	slog.Debug("Server.receiveWebhookHandler: webhook parsed", "messages", len(messages), "receipts", len(receipts))

	if cloud, ok := s.msgService.(*messaging.CloudService); ok {
		cloud.EnqueueInbound(messages, receipts)
	} else if len(messages) > 0 {
		slog.Warn("Server.receiveWebhookHandler: webhook received but transport is not the cloud API", "messages", len(messages))
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "EVENT_RECEIVED")
}

// twilioWebhookHandler routes Twilio's inbound webhook to the Twilio
// transport when that backend is configured.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	twilioSvc, ok := s.msgService.(*messaging.TwilioService)
	if !ok {
		slog.Warn("Server.twilioWebhookHandler: twilio webhook received but transport is not twilio")
		writeJSONResponse(w, http.StatusNotFound, models.Error("Twilio transport not configured"))
		return
	}
	twilioSvc.TwilioWebhookHandler(w, r)
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	stats, err := s.st.GetStats()
	if err != nil {
		slog.Warn("Health check: failed to fetch relay stats", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to fetch relay stats"
	} else {
		healthData["relays_delivered"] = stats.Delivered
		healthData["relays_failed"] = stats.DeliveryFailed
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}

// relaysHandler returns recent relay audit records (GET /relays).
func (s *Server) relaysHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.relaysHandler: processing relays request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := store.DefaultRelayLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = parsed
	}

	relays, err := s.st.GetRelays(limit)
	if err != nil {
		slog.Error("Server.relaysHandler: error fetching relays", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch relays"))
		return
	}
	slog.Debug("Server.relaysHandler: relays fetched", "count", len(relays))
	writeJSONResponse(w, http.StatusOK, models.Success(relays))
}

// statsHandler returns relay outcome counters (GET /stats).
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.statsHandler: processing stats request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.st.GetStats()
	if err != nil {
		slog.Error("Server.statsHandler: error fetching stats", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// preferencesRequest is the POST /preferences/{sender} body.
type preferencesRequest struct {
	Languages []string `json:"languages"`
}

// preferencesHandler manages per-sender target-language preferences
// (GET/POST /preferences/{sender}).
func (s *Server) preferencesHandler(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimPrefix(r.URL.Path, "/preferences/")
	if sender == "" || strings.Contains(sender, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown preferences endpoint"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getPreferencesHandler(w, r, sender)
	case http.MethodPost:
		s.setPreferencesHandler(w, r, sender)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getPreferencesHandler(w http.ResponseWriter, r *http.Request, sender string) {
	saved, err := s.st.GetTargetLanguages(sender)
	if err != nil {
		slog.Error("Server.getPreferencesHandler: error fetching preferences", "sender", sender, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch preferences"))
		return
	}

	record := models.PreferenceRecord{Sender: sender, Languages: saved, IsDefault: len(saved) == 0}
	if record.IsDefault {
		record.Languages = lang.DefaultTargets
	}
	writeJSONResponse(w, http.StatusOK, models.Success(record))
}

func (s *Server) setPreferencesHandler(w http.ResponseWriter, r *http.Request, sender string) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.setPreferencesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if len(req.Languages) == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("At least one target language is required"))
		return
	}
	for _, code := range req.Languages {
		if !lang.IsSupported(code) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Unsupported language code: "+code))
			return
		}
	}

	if err := s.st.SetTargetLanguages(sender, req.Languages); err != nil {
		slog.Error("Server.setPreferencesHandler: error saving preferences", "sender", sender, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save preferences"))
		return
	}

	slog.Info("Server.setPreferencesHandler: preferences saved", "sender", sender, "languages", req.Languages)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Preferences saved successfully", req.Languages))
}
