// Package chime plays a short audible signal when a scheduled cleaning
// starts.
package chime

import "math"

type note struct {
	freq     float64
	duration float64 // seconds
}

var startMelody = []note{
	{freq: 880, duration: 0.15},
	{freq: 0, duration: 0.05},
	{freq: 1320, duration: 0.25},
}

// synthesize renders notes as mono float32 samples with a short linear
// fade at each edge to avoid clicks.
func synthesize(notes []note, sampleRate int, volume float32) []float32 {
	var out []float32
	fade := sampleRate / 200
	for _, n := range notes {
		count := int(n.duration * float64(sampleRate))
		for i := 0; i < count; i++ {
			if n.freq == 0 {
				out = append(out, 0)
				continue
			}
			gain := volume
			if i < fade {
				gain *= float32(i) / float32(fade)
			} else if count-i < fade {
				gain *= float32(count-i) / float32(fade)
			}
			s := math.Sin(2 * math.Pi * n.freq * float64(i) / float64(sampleRate))
			out = append(out, gain*float32(s))
		}
	}
	return out
}
