package audio

import (
	"encoding/binary"
	"math"
)

// PCM is a fully decoded track of interleaved signed 16-bit samples
type PCM struct {
	Samples    []int16
	Channels   int
	SampleRate int
}

// Frames returns the number of sample frames
func (p *PCM) Frames() int {
	if p == nil || p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the track length in seconds
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate == 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// render fills out with frames starting at frame position pos, advancing by
// speed frames per output frame and scaling by volume. It returns the new
// position and whether the end of the track was reached; the remainder of out
// is zeroed past the end.
func render(out []byte, p *PCM, pos, speed, volume float64) (float64, bool) {
	if p == nil || p.Channels == 0 {
		clear(out)
		return pos, false
	}

	ch := p.Channels
	frames := len(out) / (2 * ch)
	total := p.Frames()

	for i := 0; i < frames; i++ {
		idx := int(pos)
		if idx >= total {
			clear(out[i*2*ch:])
			return pos, true
		}
		for c := 0; c < ch; c++ {
			v := float64(p.Samples[idx*ch+c]) * volume
			v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
			binary.LittleEndian.PutUint16(out[(i*ch+c)*2:], uint16(int16(v)))
		}
		pos += speed
	}
	return pos, int(pos) >= total
}

// bytesToSamples converts little-endian 16-bit PCM bytes to samples
func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
