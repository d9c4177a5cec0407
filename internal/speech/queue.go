// Package speech owns the ordered speech and sound queue: one utterance or
// tone plays at a time, strictly in the order it was enqueued.
package speech

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

type job struct {
	text string
	tone Tone
	done chan struct{}
}

// Queue serializes all voice feedback. Utterances and tones share one worker
// so a tone can never race the end of a spoken confirmation.
type Queue struct {
	synth Synthesizer
	sink  Sink

	jobs     chan job
	speaking int32

	mu       sync.Mutex
	settings Settings
}

// NewQueue constructs a queue. A nil synthesizer or sink degrades to a no-op,
// keeping the cart flow alive when voice is unavailable.
func NewQueue(synth Synthesizer, sink Sink) *Queue {
	if synth == nil {
		synth = nopSynth{}
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Queue{
		synth:    synth,
		sink:     sink,
		jobs:     make(chan job, 64),
		settings: Settings{Voice: "es-PE-Standard-A", Speed: 1.0, Enabled: true},
	}
}

// Start runs the worker until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			atomic.StoreInt32(&q.speaking, 1)
			q.run(ctx, j)
			atomic.StoreInt32(&q.speaking, 0)
			if j.done != nil {
				close(j.done)
			}
		}
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	if j.tone != "" {
		q.sink.WritePCM(tonePCM(j.tone))
		return
	}
	if !q.Settings().Enabled {
		return
	}
	log.Printf("speech: saying: %s", j.text)
	pcmCh, errCh := q.synth.StreamPCM(ctx, j.text, q.Settings().Voice)
	openPCM, openErr := true, true
	for openPCM || openErr {
		select {
		case b, ok := <-pcmCh:
			if !ok {
				openPCM = false
				continue
			}
			if len(b) > 0 {
				q.sink.WritePCM(b)
			}
		case e, ok := <-errCh:
			if !ok {
				openErr = false
				continue
			}
			if e != nil {
				// voice is best-effort: the mutation already happened
				log.Printf("speech: synth error: %v", e)
			}
		case <-ctx.Done():
			openPCM, openErr = false, false
		}
	}
}

// Say enqueues an utterance. It never blocks the caller's interaction turn;
// when the queue is full the utterance is dropped with a log line.
func (q *Queue) Say(text string) {
	if text == "" {
		return
	}
	select {
	case q.jobs <- job{text: text}:
	default:
		log.Printf("speech: queue full, dropping: %s", text)
	}
}

// SayWait enqueues an utterance and returns a channel closed when it has
// finished playing.
func (q *Queue) SayWait(text string) <-chan struct{} {
	done := make(chan struct{})
	select {
	case q.jobs <- job{text: text, done: done}:
	default:
		close(done)
	}
	return done
}

// Play enqueues a feedback tone behind any pending speech.
func (q *Queue) Play(t Tone) {
	select {
	case q.jobs <- job{tone: t}:
	default:
	}
}

// Speaking reports whether an utterance or tone is currently being played.
func (q *Queue) Speaking() bool { return atomic.LoadInt32(&q.speaking) == 1 }

// SetSettings swaps the active voice preferences.
func (q *Queue) SetSettings(s Settings) {
	q.mu.Lock()
	q.settings = s
	q.mu.Unlock()
}

// Settings returns the active voice preferences.
func (q *Queue) Settings() Settings {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.settings
}
