package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SoyDuilio/quevendi/internal/cart"
	"github.com/SoyDuilio/quevendi/internal/dispatcher"
	"github.com/SoyDuilio/quevendi/internal/gateway"
	"github.com/SoyDuilio/quevendi/internal/speech"
)

type fakeTerminal struct {
	mu       sync.Mutex
	offered  []string
	selected []int
	method   string
	state    dispatcher.State
}

func (f *fakeTerminal) Offer(text string) {
	f.mu.Lock()
	f.offered = append(f.offered, text)
	f.mu.Unlock()
}

func (f *fakeTerminal) Select(index int) {
	f.mu.Lock()
	f.selected = append(f.selected, index)
	f.mu.Unlock()
}

func (f *fakeTerminal) SetPaymentMethod(method string) {
	f.mu.Lock()
	f.method = method
	f.mu.Unlock()
}

func (f *fakeTerminal) PaymentMethod() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.method == "" {
		return "efectivo"
	}
	return f.method
}

func (f *fakeTerminal) State() dispatcher.State {
	if f.state == "" {
		return dispatcher.StateListening
	}
	return f.state
}

type fakeLoop struct {
	resumes int
	pauses  int
	armed   bool
}

func (f *fakeLoop) Resume()     { f.resumes++ }
func (f *fakeLoop) Pause()      { f.pauses++ }
func (f *fakeLoop) Armed() bool { return f.armed }

type fakeStore struct {
	loaded gateway.VoiceSettings
	saved  []gateway.VoiceSettings
}

func (f *fakeStore) LoadVoiceSettings(ctx context.Context) gateway.VoiceSettings {
	if f.loaded == (gateway.VoiceSettings{}) {
		return gateway.DefaultVoiceSettings()
	}
	return f.loaded
}

func (f *fakeStore) SaveVoiceSettings(ctx context.Context, s gateway.VoiceSettings) {
	f.saved = append(f.saved, s)
}

type fakeVoice struct {
	settings speech.Settings
}

func (f *fakeVoice) SetSettings(s speech.Settings) { f.settings = s }
func (f *fakeVoice) Settings() speech.Settings     { return f.settings }

func newTestServer() (*Server, *fakeTerminal, *fakeLoop, *fakeStore, *fakeVoice, *cart.Engine) {
	term := &fakeTerminal{}
	loop := &fakeLoop{armed: true}
	store := &fakeStore{}
	voice := &fakeVoice{}
	engine := cart.NewEngine()
	srv := NewServer(term, loop, store, voice, NewHub(), engine)
	return srv, term, loop, store, voice, engine
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	e := NewEcho()
	srv.Register(e)
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _, _, _, _, _ := newTestServer()
	w := do(srv, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUtteranceForwarded(t *testing.T) {
	srv, term, _, _, _, _ := newTestServer()
	w := do(srv, http.MethodPost, "/voice/utterance", `{"text":"  dos panes  "}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(term.offered) != 1 || term.offered[0] != "dos panes" {
		t.Fatalf("expected trimmed utterance forwarded, got %v", term.offered)
	}
}

func TestUtteranceEmptyRejected(t *testing.T) {
	srv, term, _, _, _, _ := newTestServer()
	w := do(srv, http.MethodPost, "/voice/utterance", `{"text":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(term.offered) != 0 {
		t.Fatalf("blank utterance must not reach the dispatcher")
	}
}

func TestSelectForwarded(t *testing.T) {
	srv, term, _, _, _, _ := newTestServer()
	w := do(srv, http.MethodPost, "/voice/select", `{"index":1}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(term.selected) != 1 || term.selected[0] != 1 {
		t.Fatalf("expected selection forwarded, got %v", term.selected)
	}
}

func TestResumeAndPause(t *testing.T) {
	srv, _, loop, _, _, _ := newTestServer()
	if w := do(srv, http.MethodPost, "/voice/resume", ""); w.Code != http.StatusNoContent {
		t.Fatalf("resume: expected 204, got %d", w.Code)
	}
	if w := do(srv, http.MethodPost, "/voice/pause", ""); w.Code != http.StatusNoContent {
		t.Fatalf("pause: expected 204, got %d", w.Code)
	}
	if loop.resumes != 1 || loop.pauses != 1 {
		t.Fatalf("expected one resume and one pause, got %d/%d", loop.resumes, loop.pauses)
	}
}

func TestStateSnapshot(t *testing.T) {
	srv, _, _, _, _, engine := newTestServer()
	engine.Add([]cart.Item{{Product: cart.Product{ID: 1, Name: "Pan", Price: 0.5, Stock: 100}, Quantity: 4}})

	w := do(srv, http.MethodGet, "/voice/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		State         string      `json:"state"`
		Armed         bool        `json:"armed"`
		PaymentMethod string      `json:"payment_method"`
		Items         []cart.Item `json:"items"`
		Total         float64     `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != "listening" || !got.Armed || got.PaymentMethod != "efectivo" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if len(got.Items) != 1 || got.Total != 2 {
		t.Fatalf("expected cart snapshot with total 2, got %+v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, _, store, voice, _ := newTestServer()

	w := do(srv, http.MethodGet, "/voice/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var s gateway.VoiceSettings
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Voice != "es-PE-Standard-A" || s.Speed != 1.0 || !s.Enabled {
		t.Fatalf("expected defaults, got %+v", s)
	}

	w = do(srv, http.MethodPost, "/voice/settings", `{"voice":"es-PE-Wavenet-B","speed":1.2,"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if voice.settings.Voice != "es-PE-Wavenet-B" || voice.settings.Speed != 1.2 || voice.settings.Enabled {
		t.Fatalf("queue settings not applied: %+v", voice.settings)
	}
	if len(store.saved) != 1 || store.saved[0].Voice != "es-PE-Wavenet-B" {
		t.Fatalf("settings not persisted: %+v", store.saved)
	}
}

func TestSettingsChangeIsBroadcast(t *testing.T) {
	srv, _, _, _, _, _ := newTestServer()
	conn, done := dialHub(t, srv.hub)
	defer done()
	waitClients(t, srv.hub, 1)

	if w := do(srv, http.MethodPost, "/voice/settings", `{"voice":"es-PE-Wavenet-B","speed":1.2,"enabled":true}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Type    string  `json:"type"`
		Voice   string  `json:"voice"`
		Speed   float64 `json:"speed"`
		Enabled bool    `json:"enabled"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != "voice_settings" || ev.Speed != 1.2 || ev.Voice != "es-PE-Wavenet-B" || !ev.Enabled {
		t.Fatalf("unexpected settings event: %+v", ev)
	}
}

func TestSettingsFillsMissingFields(t *testing.T) {
	srv, _, _, _, voice, _ := newTestServer()
	w := do(srv, http.MethodPost, "/voice/settings", `{"enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if voice.settings.Voice != "es-PE-Standard-A" || voice.settings.Speed != 1.0 {
		t.Fatalf("missing fields not defaulted: %+v", voice.settings)
	}
}

func TestQuantityDeltaAndClamp(t *testing.T) {
	srv, _, _, _, _, engine := newTestServer()
	engine.Add([]cart.Item{{Product: cart.Product{ID: 1, Name: "Pan", Price: 0.5, Stock: 5}, Quantity: 4}})

	w := do(srv, http.MethodPost, "/cart/quantity", `{"index":0,"delta":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		Item    cart.Item `json:"item"`
		Warning string    `json:"warning"`
		Total   float64   `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Item.Quantity != 5 || got.Warning == "" {
		t.Fatalf("expected clamp at stock with warning, got %+v", got)
	}
	if got.Total != 2.5 {
		t.Fatalf("expected total 2.5, got %v", got.Total)
	}
}

func TestQuantityAbsolute(t *testing.T) {
	srv, _, _, _, _, engine := newTestServer()
	engine.Add([]cart.Item{{Product: cart.Product{ID: 1, Name: "Pan", Price: 0.5, Stock: 100}, Quantity: 4}})

	w := do(srv, http.MethodPost, "/cart/quantity", `{"index":0,"quantity":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := engine.Items()[0]; got.Quantity != 2 || got.Subtotal != 1 {
		t.Fatalf("expected quantity 2 subtotal 1, got %+v", got)
	}
}

func TestQuantityBadIndex(t *testing.T) {
	srv, _, _, _, _, _ := newTestServer()
	if w := do(srv, http.MethodPost, "/cart/quantity", `{"index":3,"delta":1}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(srv, http.MethodPost, "/cart/quantity", `{"index":0}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without quantity or delta, got %d", w.Code)
	}
}

func TestPaymentValidation(t *testing.T) {
	srv, term, _, _, _, _ := newTestServer()

	w := do(srv, http.MethodPost, "/payment", `{"method":"Yape"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if term.method != "yape" {
		t.Fatalf("expected normalized method, got %q", term.method)
	}

	w = do(srv, http.MethodPost, "/payment", `{"method":"bitcoin"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown method, got %d", w.Code)
	}
	if term.method != "yape" {
		t.Fatalf("rejected method must not stick, got %q", term.method)
	}
}
