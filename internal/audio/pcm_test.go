package audio

import (
	"encoding/binary"
	"testing"
)

func samplesOf(out []byte) []int16 {
	s := make([]int16, len(out)/2)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(out[i*2:]))
	}
	return s
}

func TestPCM_FramesAndDuration(t *testing.T) {
	p := &PCM{Samples: make([]int16, 88200), Channels: 2, SampleRate: 44100}
	if p.Frames() != 44100 {
		t.Errorf("Frames() = %d, want 44100", p.Frames())
	}
	if p.Duration() != 1 {
		t.Errorf("Duration() = %v, want 1", p.Duration())
	}

	var nilPCM *PCM
	if nilPCM.Frames() != 0 || nilPCM.Duration() != 0 {
		t.Error("nil PCM should have zero frames and duration")
	}
}

func TestRender_VolumeScaling(t *testing.T) {
	p := &PCM{Samples: []int16{1000, -1000, 2000, -2000}, Channels: 1, SampleRate: 8000}
	out := make([]byte, 8)

	pos, ended := render(out, p, 0, 1, 0.5)
	if pos != 4 {
		t.Errorf("pos = %v, want 4", pos)
	}
	if !ended {
		t.Error("expected end of track after rendering every frame")
	}
	want := []int16{500, -500, 1000, -1000}
	for i, s := range samplesOf(out) {
		if s != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, s, want[i])
		}
	}
}

func TestRender_ClampsAtFullScale(t *testing.T) {
	p := &PCM{Samples: []int16{32767, -32768}, Channels: 1, SampleRate: 8000}
	out := make([]byte, 4)

	render(out, p, 0, 1, 1)
	got := samplesOf(out)
	if got[0] != 32767 || got[1] != -32768 {
		t.Errorf("got %v, want [32767 -32768]", got)
	}
}

func TestRender_DoubleSpeedSkipsFrames(t *testing.T) {
	p := &PCM{Samples: []int16{1, 2, 3, 4, 5, 6, 7, 8}, Channels: 1, SampleRate: 8000}
	out := make([]byte, 4*2)

	pos, ended := render(out, p, 0, 2, 1)
	if pos != 8 || !ended {
		t.Errorf("pos = %v ended = %v, want 8 true", pos, ended)
	}
	want := []int16{1, 3, 5, 7}
	for i, s := range samplesOf(out) {
		if s != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, s, want[i])
		}
	}
}

func TestRender_ZeroFillsPastEnd(t *testing.T) {
	p := &PCM{Samples: []int16{10, 20, 30, 40}, Channels: 2, SampleRate: 8000}
	out := make([]byte, 4*2*2)
	for i := range out {
		out[i] = 0xff
	}

	_, ended := render(out, p, 1, 1, 1)
	if !ended {
		t.Fatal("expected end of track")
	}
	want := []int16{30, 40, 0, 0, 0, 0, 0, 0}
	for i, s := range samplesOf(out) {
		if s != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, s, want[i])
		}
	}
}

func TestRender_NilTrackIsSilent(t *testing.T) {
	out := []byte{1, 2, 3, 4}
	pos, ended := render(out, nil, 3, 1, 1)
	if pos != 3 || ended {
		t.Errorf("pos = %v ended = %v, want 3 false", pos, ended)
	}
	for i, b := range out {
		if b != 0 {
			t.Errorf("out[%d] = %d, want 0", i, b)
		}
	}
}
