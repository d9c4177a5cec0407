// Package httpserver is the local control surface of the terminal: the page
// posts recognized utterances and taps here, and receives events and audio
// back over the websocket hub.
package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SoyDuilio/quevendi/internal/cart"
	"github.com/SoyDuilio/quevendi/internal/dispatcher"
	"github.com/SoyDuilio/quevendi/internal/gateway"
	"github.com/SoyDuilio/quevendi/internal/speech"
)

// Terminal is the dispatcher-facing slice the routes need.
type Terminal interface {
	Offer(text string)
	Select(index int)
	SetPaymentMethod(method string)
	PaymentMethod() string
	State() dispatcher.State
}

// Loop controls the listening cycle.
type Loop interface {
	Resume()
	Pause()
	Armed() bool
}

// SettingsStore persists voice preferences on the backend.
type SettingsStore interface {
	LoadVoiceSettings(ctx context.Context) gateway.VoiceSettings
	SaveVoiceSettings(ctx context.Context, s gateway.VoiceSettings)
}

// Voice is the live speech queue configuration.
type Voice interface {
	SetSettings(s speech.Settings)
	Settings() speech.Settings
}

var paymentMethods = map[string]bool{
	"efectivo": true,
	"yape":     true,
	"plin":     true,
}

// Server wires the routes to the terminal internals.
type Server struct {
	terminal Terminal
	loop     Loop
	store    SettingsStore
	voice    Voice
	hub      *Hub
	cart     *cart.Engine
}

func NewServer(terminal Terminal, loop Loop, store SettingsStore, voice Voice, hub *Hub, c *cart.Engine) *Server {
	return &Server{terminal: terminal, loop: loop, store: store, voice: voice, hub: hub, cart: c}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/events", s.hub.Handle)
	e.POST("/voice/utterance", s.utterance)
	e.POST("/voice/select", s.selectOption)
	e.POST("/voice/resume", s.resume)
	e.POST("/voice/pause", s.pause)
	e.GET("/voice/state", s.state)
	e.GET("/voice/settings", s.getSettings)
	e.POST("/voice/settings", s.setSettings)
	e.POST("/cart/quantity", s.quantity)
	e.POST("/payment", s.payment)
}

// quantity serves the cart's +/- buttons: an absolute quantity or a delta,
// clamped by the engine. The clamp warning is returned for the page to show.
func (s *Server) quantity(c echo.Context) error {
	var req struct {
		Index    int      `json:"index"`
		Quantity *float64 `json:"quantity"`
		Delta    *float64 `json:"delta"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}

	var (
		item    cart.Item
		warning string
		err     error
	)
	switch {
	case req.Quantity != nil:
		item, warning, err = s.cart.SetQuantity(req.Index, *req.Quantity)
	case req.Delta != nil:
		item, warning, err = s.cart.ChangeQuantity(req.Index, *req.Delta)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "quantity or delta required"})
	}
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "no cart line at that index"})
	}

	s.hub.Broadcast(cartEvent{Type: "cart_changed", Items: s.cart.Items(), Total: s.cart.Total()})
	return c.JSON(http.StatusOK, echo.Map{
		"item":    item,
		"warning": warning,
		"total":   s.cart.Total(),
	})
}

func (s *Server) utterance(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "empty utterance"})
	}
	s.terminal.Offer(req.Text)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) selectOption(c echo.Context) error {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}
	s.terminal.Select(req.Index)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) resume(c echo.Context) error {
	s.loop.Resume()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) pause(c echo.Context) error {
	s.loop.Pause()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) state(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"state":          s.terminal.State(),
		"armed":          s.loop.Armed(),
		"payment_method": s.terminal.PaymentMethod(),
		"items":          s.cart.Items(),
		"total":          s.cart.Total(),
	})
}

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.LoadVoiceSettings(c.Request().Context()))
}

func (s *Server) setSettings(c echo.Context) error {
	var req gateway.VoiceSettings
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}
	if req.Voice == "" {
		req.Voice = gateway.DefaultVoiceSettings().Voice
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}
	s.voice.SetSettings(speech.Settings{Voice: req.Voice, Speed: req.Speed, Enabled: req.Enabled})
	s.hub.Broadcast(settingsEvent{Type: "voice_settings", Voice: req.Voice, Speed: req.Speed, Enabled: req.Enabled})
	// persistence is best-effort; the live queue and pages are already updated
	s.store.SaveVoiceSettings(c.Request().Context(), req)
	return c.JSON(http.StatusOK, req)
}

func (s *Server) payment(c echo.Context) error {
	var req struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if !paymentMethods[req.Method] {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "unknown payment method"})
	}
	s.terminal.SetPaymentMethod(req.Method)
	return c.JSON(http.StatusOK, echo.Map{"payment_method": req.Method})
}
