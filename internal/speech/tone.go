package speech

import (
	"encoding/binary"
	"math"
)

const (
	toneSampleRate = 48000
	toneDurationMs = 150
	// kept low so a tone never drowns the following utterance
	toneAmplitude = 0.3
)

var toneFreq = map[Tone]float64{
	ToneConfirm: 880,
	ToneCancel:  440,
	ToneAlert:   660,
	ToneError:   220,
}

// tonePCM renders a short linear16 mono burst for the given tone, with a
// linear fade-out to avoid a click at the end.
func tonePCM(t Tone) []byte {
	freq, ok := toneFreq[t]
	if !ok {
		return nil
	}
	samples := toneSampleRate * toneDurationMs / 1000
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		fade := 1.0 - float64(i)/float64(samples)
		v := toneAmplitude * fade * math.Sin(2*math.Pi*freq*float64(i)/toneSampleRate)
		s := int16(v * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}
