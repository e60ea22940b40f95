package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/mewkiz/flac"
	"github.com/tosone/minimp3"
)

// Decode decodes an encoded audio file. The codec is chosen from the
// extension of name, which may be a path or a URL.
func Decode(data []byte, name string) (*PCM, error) {
	switch ext := sourceExt(name); ext {
	case ".mp3":
		return decodeMP3(data)
	case ".flac":
		return decodeFLAC(data)
	case ".wav":
		return decodeWAV(data)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
}

func sourceExt(name string) string {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Path != "" {
		name = u.Path
	}
	return strings.ToLower(filepath.Ext(name))
}

func decodeMP3(data []byte) (*PCM, error) {
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}
	if dec.Channels == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("decoding mp3: no audio frames found")
	}
	return &PCM{
		Samples:    bytesToSamples(pcm),
		Channels:   dec.Channels,
		SampleRate: dec.SampleRate,
	}, nil
}

func decodeFLAC(data []byte) (*PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding flac: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bps := int(info.BitsPerSample)
	// the header count is untrusted; a stream cannot hold more samples
	// than it has bytes
	capacity := min(info.NSamples, uint64(len(data)))
	result := &PCM{
		Channels:   channels,
		SampleRate: int(info.SampleRate),
		Samples:    make([]int16, 0, int(capacity)*channels),
	}

	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding flac frame: %w", err)
		}
		n := int(f.BlockSize)
		for i := 0; i < n; i++ {
			for c := 0; c < channels; c++ {
				result.Samples = append(result.Samples, scaleTo16(f.Subframes[c].Samples[i], bps))
			}
		}
	}
	return result, nil
}

func scaleTo16(s int32, bps int) int16 {
	switch {
	case bps > 16:
		return int16(s >> (bps - 16))
	case bps < 16:
		return int16(s << (16 - bps))
	default:
		return int16(s)
	}
}

// decodeWAV reads a canonical RIFF/WAVE file with 16-bit PCM data
func decodeWAV(data []byte) (*PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("decoding wav: not a RIFF/WAVE file")
	}

	var (
		channels, bits int
		rate           int
		pcm            []byte
	)
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		end := min(body+size, len(data))
		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("decoding wav: short fmt chunk")
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != 1 {
				return nil, fmt.Errorf("decoding wav: unsupported format tag %d", tag)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			rate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			pcm = data[body:end]
		}
		pos = body + size + size%2
	}

	if channels == 0 || rate == 0 {
		return nil, fmt.Errorf("decoding wav: missing fmt chunk")
	}
	if bits != 16 {
		return nil, fmt.Errorf("decoding wav: unsupported bit depth %d", bits)
	}
	return &PCM{Samples: bytesToSamples(pcm), Channels: channels, SampleRate: rate}, nil
}
