package speech

import "context"

// Synthesizer streams PCM audio for the given text with the given voice.
type Synthesizer interface {
	StreamPCM(ctx context.Context, text, voice string) (<-chan []byte, <-chan error)
}

// Sink consumes synthesized PCM and delivers it to whatever plays it.
// Implementations should not block for long; slow consumers drop frames.
type Sink interface {
	WritePCM(pcm []byte)
}

// Tone identifies one of the terminal's short feedback sounds.
type Tone string

const (
	ToneConfirm Tone = "confirm"
	ToneCancel  Tone = "cancel"
	ToneAlert   Tone = "alert"
	ToneError   Tone = "error"
)

// Settings mirror the backend voice preferences. The queue applies Voice and
// Enabled at synthesis time; Speed is relayed to the playback side over the
// event channel and never reaches the synthesizer.
type Settings struct {
	Voice   string
	Speed   float64
	Enabled bool
}

type nopSink struct{}

func (nopSink) WritePCM(_ []byte) {}

type nopSynth struct{}

func (nopSynth) StreamPCM(_ context.Context, _, _ string) (<-chan []byte, <-chan error) {
	pcm := make(chan []byte)
	errc := make(chan error)
	close(pcm)
	close(errc)
	return pcm, errc
}
