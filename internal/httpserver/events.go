package httpserver

import (
	"github.com/SoyDuilio/quevendi/internal/cart"
	"github.com/SoyDuilio/quevendi/internal/command"
	"github.com/SoyDuilio/quevendi/internal/dispatcher"
	"github.com/SoyDuilio/quevendi/internal/listener"
)

type cartEvent struct {
	Type  string      `json:"type"`
	Items []cart.Item `json:"items"`
	Total float64     `json:"total"`
}

type stateEvent struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type chooseEvent struct {
	Type    string         `json:"type"`
	Query   string         `json:"query"`
	Options []cart.Product `json:"options"`
}

type transcriptEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type simpleEvent struct {
	Type string `json:"type"`
}

type armedEvent struct {
	Type  string `json:"type"`
	Armed bool   `json:"armed"`
}

// settingsEvent tells the pages to adjust playback: the speed multiplier and
// the mute switch are applied by the player, not at synthesis.
type settingsEvent struct {
	Type    string  `json:"type"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed"`
	Enabled bool    `json:"enabled"`
}

// DispatcherEvents bridges interaction notifications onto the hub. Cart
// snapshots are taken at event time so the page never recomputes totals.
func DispatcherEvents(h *Hub, c *cart.Engine) dispatcher.Events {
	return dispatcher.Events{
		CartChanged: func() {
			h.Broadcast(cartEvent{Type: "cart_changed", Items: c.Items(), Total: c.Total()})
		},
		SalesUpdated: func() {
			h.Broadcast(simpleEvent{Type: "sales_updated"})
		},
		StateChanged: func(s dispatcher.State) {
			h.Broadcast(stateEvent{Type: "state", State: string(s)})
		},
		Choose: func(ch command.Choice) {
			h.Broadcast(chooseEvent{Type: "choose", Query: ch.Query, Options: ch.Options})
		},
		Transcript: func(text string) {
			h.Broadcast(transcriptEvent{Type: "transcript", Text: text})
		},
	}
}

// ListenerEvents bridges listen-loop notifications onto the hub.
func ListenerEvents(h *Hub) listener.Events {
	return listener.Events{
		Armed: func(on bool) {
			h.Broadcast(armedEvent{Type: "armed", Armed: on})
		},
		PromptResume: func() {
			h.Broadcast(simpleEvent{Type: "prompt_resume"})
		},
	}
}
