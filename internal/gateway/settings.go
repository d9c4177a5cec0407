package gateway

import (
	"context"
	"log"
	"net/http"
)

// VoiceSettings configures speech synthesis for the terminal.
type VoiceSettings struct {
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed"`
	Enabled bool    `json:"enabled"`
}

// DefaultVoiceSettings are safe to run with when the backend cannot be reached.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Voice: "es-PE-Standard-A", Speed: 1.0, Enabled: true}
}

// LoadVoiceSettings fetches the cashier's voice preferences. Any failure falls
// back to the defaults without surfacing an error; defaults are always safe.
func (c *Client) LoadVoiceSettings(ctx context.Context) VoiceSettings {
	var s VoiceSettings
	if err := c.do(ctx, http.MethodGet, "/api/sales/voice/settings", nil, &s); err != nil {
		log.Printf("settings: using defaults: %v", err)
		return DefaultVoiceSettings()
	}
	if s.Voice == "" {
		s.Voice = DefaultVoiceSettings().Voice
	}
	if s.Speed == 0 {
		s.Speed = 1.0
	}
	return s
}

// SaveVoiceSettings stores the preferences. Failures are logged only.
func (c *Client) SaveVoiceSettings(ctx context.Context, s VoiceSettings) {
	if err := c.do(ctx, http.MethodPost, "/api/sales/voice/settings", s, nil); err != nil {
		log.Printf("settings: save failed: %v", err)
	}
}
