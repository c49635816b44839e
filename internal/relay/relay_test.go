package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/compose"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/store"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/translate"
)

// mockSender records sends and optionally fails them.
type mockSender struct {
	mu      sync.Mutex
	sent    []string
	sendErr func(attempt int) error
	calls   int
}

func (m *mockSender) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.sendErr != nil {
		if err := m.sendErr(m.calls); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, body)
	return nil
}

func (m *mockSender) sentBodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// mockReporter records permanent delivery failures.
type mockReporter struct {
	mu       sync.Mutex
	reported []string
}

func (m *mockReporter) ReportDeliveryFailure(messageID, recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reported = append(m.reported, messageID)
}

func newTestOrchestrator(tr translate.Translator, sender Sender, st store.Store, opts ...Option) *Orchestrator {
	base := []Option{
		WithTargets([]string{"hi", "te", "en"}),
		WithCallTimeout(time.Second),
		WithBackoffBase(time.Millisecond),
	}
	return NewOrchestrator(tr, sender, st, append(base, opts...)...)
}

func jaMessage(id string) models.InboundMessage {
	return models.InboundMessage{
		ID:   id,
		From: "+15551234567",
		Body: "空港まで行ってください",
		Time: time.Now().Unix(),
	}
}

// All three targets translate successfully: one send containing the original
// plus three labeled translations in configured order.
func TestRelaySuccessAllLanguages(t *testing.T) {
	translations := map[string]string{
		"hi": "कृपया हवाई अड्डे जाइए",
		"te": "దయచేసి విమానాశ్రయానికి వెళ్లండి",
		"en": "Please go to the airport",
	}
	tr := &translate.MockTranslator{
		DetectFunc: func(ctx context.Context, text string) (string, error) { return "ja", nil },
		TranslateFunc: func(ctx context.Context, text, target string) (string, error) {
			return translations[target], nil
		},
	}
	sender := &mockSender{}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st)

	state, err := o.ProcessMessage(context.Background(), jaMessage("wamid.success"))
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if state != models.RelayStateDelivered {
		t.Fatalf("state = %q, want %q", state, models.RelayStateDelivered)
	}

	sent := sender.sentBodies()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 outbound send, got %d", len(sent))
	}
	reply := sent[0]
	if !strings.Contains(reply, "空港まで行ってください") {
		t.Errorf("reply missing original text:\n%s", reply)
	}
	for _, translated := range translations {
		if !strings.Contains(reply, translated) {
			t.Errorf("reply missing translation %q:\n%s", translated, reply)
		}
	}
	hiIdx := strings.Index(reply, translations["hi"])
	teIdx := strings.Index(reply, translations["te"])
	enIdx := strings.Index(reply, translations["en"])
	if !(hiIdx < teIdx && teIdx < enIdx) {
		t.Errorf("translations out of configured order:\n%s", reply)
	}

	stats, _ := st.GetStats()
	if stats.Delivered != 1 {
		t.Errorf("expected 1 delivered in stats, got %+v", stats)
	}
}

// Redelivery of the same message id produces zero additional sends.
func TestRelayDuplicateDelivery(t *testing.T) {
	tr := &translate.MockTranslator{}
	sender := &mockSender{}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st)

	msg := jaMessage("wamid.redelivered")
	if _, err := o.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}

	state, err := o.ProcessMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("second delivery returned error: %v", err)
	}
	if state != models.RelayStateDuplicate {
		t.Errorf("state = %q, want %q", state, models.RelayStateDuplicate)
	}
	if got := len(sender.sentBodies()); got != 1 {
		t.Errorf("expected exactly 1 send across both deliveries, got %d", got)
	}
}

// N concurrent deliveries of the same message yield exactly one send.
func TestRelayConcurrentDuplicates(t *testing.T) {
	tr := &translate.MockTranslator{}
	sender := &mockSender{}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st)

	msg := jaMessage("wamid.concurrent")
	const deliveries = 10
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.ProcessMessage(context.Background(), msg)
		}()
	}
	wg.Wait()

	if got := len(sender.sentBodies()); got != 1 {
		t.Errorf("expected exactly 1 send for %d concurrent deliveries, got %d", deliveries, got)
	}
}

// One branch failing permanently degrades that language only; the relay still
// delivers.
func TestRelayPartialFailureIsolation(t *testing.T) {
	var teAttempts int32
	var mu sync.Mutex
	tr := &translate.MockTranslator{
		DetectFunc: func(ctx context.Context, text string) (string, error) { return "ja", nil },
		TranslateFunc: func(ctx context.Context, text, target string) (string, error) {
			if target == "te" {
				mu.Lock()
				teAttempts++
				mu.Unlock()
				return "", &translate.ProviderError{Kind: translate.KindTimeout, Retryable: true, Err: context.DeadlineExceeded}
			}
			return "[" + target + "] " + text, nil
		},
	}
	sender := &mockSender{}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st)

	state, err := o.ProcessMessage(context.Background(), jaMessage("wamid.partial"))
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if state != models.RelayStateDelivered {
		t.Fatalf("state = %q, want %q", state, models.RelayStateDelivered)
	}

	mu.Lock()
	attempts := teAttempts
	mu.Unlock()
	if attempts != DefaultAttempts {
		t.Errorf("te branch attempted %d times, want exactly %d", attempts, DefaultAttempts)
	}

	sent := sender.sentBodies()
	if len(sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sent))
	}
	reply := sent[0]
	if !strings.Contains(reply, "[hi] ") || !strings.Contains(reply, "[en] ") {
		t.Errorf("surviving branches missing from reply:\n%s", reply)
	}
	if !strings.Contains(reply, compose.FailureMarker) {
		t.Errorf("failed branch not marked in reply:\n%s", reply)
	}
}

// A permanently invalid translation is not retried.
func TestRelayNonRetryableBranchFailsFast(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	tr := &translate.MockTranslator{
		TranslateFunc: func(ctx context.Context, text, target string) (string, error) {
			mu.Lock()
			attempts++
			mu.Unlock()
			return "", &translate.ProviderError{Kind: translate.KindUnsupportedLanguage, Retryable: false, Err: errors.New("bad pair")}
		},
	}
	sender := &mockSender{}
	o := newTestOrchestrator(tr, sender, store.NewInMemoryStore(), WithTargets([]string{"hi"}))

	if _, err := o.ProcessMessage(context.Background(), jaMessage("wamid.permfail")); err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("non-retryable failure attempted %d times, want 1", attempts)
	}
}

// Detection failure degrades to an unknown source label; translation proceeds.
func TestRelayDetectionFailureDegrades(t *testing.T) {
	tr := &translate.MockTranslator{
		DetectFunc: func(ctx context.Context, text string) (string, error) {
			return "", &translate.ProviderError{Kind: translate.KindUnavailable, Retryable: true, Err: errors.New("detect down")}
		},
	}
	sender := &mockSender{}
	o := newTestOrchestrator(tr, sender, store.NewInMemoryStore())

	state, err := o.ProcessMessage(context.Background(), jaMessage("wamid.nodetect"))
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if state != models.RelayStateDelivered {
		t.Errorf("state = %q, want %q", state, models.RelayStateDelivered)
	}
	sent := sender.sentBodies()
	if len(sent) != 1 || !strings.Contains(sent[0], "Detected: unknown") {
		t.Errorf("expected delivered reply with unknown-source header, got %v", sent)
	}
}

// A target matching the detected source is rendered from the original text
// without a provider call.
func TestRelaySkipsSourceLanguageTarget(t *testing.T) {
	var translatedTargets []string
	var mu sync.Mutex
	tr := &translate.MockTranslator{
		DetectFunc: func(ctx context.Context, text string) (string, error) { return "en", nil },
		TranslateFunc: func(ctx context.Context, text, target string) (string, error) {
			mu.Lock()
			translatedTargets = append(translatedTargets, target)
			mu.Unlock()
			return "[" + target + "] " + text, nil
		},
	}
	sender := &mockSender{}
	o := newTestOrchestrator(tr, sender, store.NewInMemoryStore())

	msg := models.InboundMessage{ID: "wamid.en", From: "+1555", Body: "take me to the airport", Time: 1}
	if _, err := o.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, target := range translatedTargets {
		if target == "en" {
			t.Error("source-language target should not reach the provider")
		}
	}
	if len(translatedTargets) != 2 {
		t.Errorf("expected 2 provider calls (hi, te), got %v", translatedTargets)
	}
	sent := sender.sentBodies()
	if len(sent) != 1 || !strings.Contains(sent[0], "English: take me to the airport") {
		t.Errorf("source-language line should carry the original text:\n%v", sent)
	}
}

// Transient send failures are retried within the budget.
func TestRelaySendRetriesTransient(t *testing.T) {
	tr := &translate.MockTranslator{}
	sender := &mockSender{
		sendErr: func(attempt int) error {
			if attempt < 3 {
				return models.NewDeliveryError(errors.New("socket reset"), true)
			}
			return nil
		},
	}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st)

	state, err := o.ProcessMessage(context.Background(), jaMessage("wamid.flaky"))
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if state != models.RelayStateDelivered {
		t.Errorf("state = %q, want %q", state, models.RelayStateDelivered)
	}
	if got := len(sender.sentBodies()); got != 1 {
		t.Errorf("expected 1 successful send, got %d", got)
	}
}

// Exhausting the send budget reaches DeliveryFailed and reports the failure.
func TestRelayDeliveryFailedReported(t *testing.T) {
	tr := &translate.MockTranslator{}
	sender := &mockSender{
		sendErr: func(attempt int) error {
			return models.NewDeliveryError(errors.New("gateway unavailable"), true)
		},
	}
	reporter := &mockReporter{}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st, WithReporter(reporter))

	state, err := o.ProcessMessage(context.Background(), jaMessage("wamid.dead"))
	if err == nil {
		t.Fatal("expected error after exhausting send budget")
	}
	if state != models.RelayStateDeliveryFailed {
		t.Errorf("state = %q, want %q", state, models.RelayStateDeliveryFailed)
	}
	if sender.calls != DefaultAttempts {
		t.Errorf("send attempted %d times, want %d", sender.calls, DefaultAttempts)
	}
	reporter.mu.Lock()
	reported := len(reporter.reported)
	reporter.mu.Unlock()
	if reported != 1 {
		t.Errorf("expected 1 reported failure, got %d", reported)
	}
	stats, _ := st.GetStats()
	if stats.DeliveryFailed != 1 {
		t.Errorf("expected 1 delivery_failed in stats, got %+v", stats)
	}
}

// A non-retryable delivery error terminates immediately.
func TestRelayNonRetryableDeliveryFailsFast(t *testing.T) {
	tr := &translate.MockTranslator{}
	sender := &mockSender{
		sendErr: func(attempt int) error {
			return models.NewDeliveryError(errors.New("invalid recipient"), false)
		},
	}
	o := newTestOrchestrator(tr, sender, store.NewInMemoryStore())

	state, err := o.ProcessMessage(context.Background(), jaMessage("wamid.badrcpt"))
	if err == nil {
		t.Fatal("expected error for invalid recipient")
	}
	if state != models.RelayStateDeliveryFailed {
		t.Errorf("state = %q, want %q", state, models.RelayStateDeliveryFailed)
	}
	if sender.calls != 1 {
		t.Errorf("non-retryable send attempted %d times, want 1", sender.calls)
	}
}

// Saved sender preferences override the default target list.
func TestRelayUsesSenderPreferences(t *testing.T) {
	tr := &translate.MockTranslator{
		DetectFunc: func(ctx context.Context, text string) (string, error) { return "ja", nil },
	}
	sender := &mockSender{}
	st := store.NewInMemoryStore()
	if err := st.SetTargetLanguages("+15551234567", []string{"fr", "de"}); err != nil {
		t.Fatalf("SetTargetLanguages returned error: %v", err)
	}
	o := newTestOrchestrator(tr, sender, st)

	if _, err := o.ProcessMessage(context.Background(), jaMessage("wamid.prefs")); err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	sent := sender.sentBodies()
	if len(sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "French") || !strings.Contains(sent[0], "German") {
		t.Errorf("reply should use saved preferences:\n%s", sent[0])
	}
	if strings.Contains(sent[0], "Telugu") {
		t.Errorf("default targets should not appear when preferences exist:\n%s", sent[0])
	}
}

// Invalid inbound messages are rejected before claiming.
func TestRelayRejectsInvalidMessage(t *testing.T) {
	tr := &translate.MockTranslator{}
	sender := &mockSender{}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(tr, sender, st)

	_, err := o.ProcessMessage(context.Background(), models.InboundMessage{ID: "wamid.empty", From: "+1", Body: "   "})
	if !errors.Is(err, models.ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
	if len(sender.sentBodies()) != 0 {
		t.Error("invalid message must not produce a send")
	}
	// The id was not claimed, so a corrected redelivery can still process.
	claimed, _ := st.ClaimInbound("wamid.empty", "+1")
	if !claimed {
		t.Error("invalid message should not consume the dedup claim")
	}
}
