package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Sink receives captured PCM and encodes it into the output file
type Sink interface {
	Write(pcm []byte) (int, error)
	Close() error
}

// newSink picks an encoder from the output file extension
func newSink(ffmpeg, outputPath string, sampleRate, channels int) (Sink, error) {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".flac":
		return newFlacSink(outputPath, sampleRate, channels)
	case ".m4a", ".caf":
		return newFFmpegSink(ffmpeg, outputPath, sampleRate, channels)
	default:
		return nil, fmt.Errorf("unsupported recording container: %s", filepath.Ext(outputPath))
	}
}

// ffmpegArgs builds the command line that encodes raw s16le from stdin
func ffmpegArgs(outputPath string, sampleRate, channels int) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-i", "pipe:0",
	}
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".caf":
		args = append(args, "-c:a", "alac", "-f", "caf")
	default:
		args = append(args, "-c:a", "aac", "-b:a", "128k", "-f", "ipod")
	}
	return append(args, "-y", outputPath)
}

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

func newFFmpegSink(ffmpeg, outputPath string, sampleRate, channels int) (*ffmpegSink, error) {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	s := &ffmpegSink{}
	s.cmd = exec.Command(ffmpeg, ffmpegArgs(outputPath, sampleRate, channels)...)
	s.cmd.Stderr = &s.stderr

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	s.stdin = stdin

	slog.Debug("Starting FFmpeg encoder", "command", strings.Join(s.cmd.Args, " "))
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return s, nil
}

func (s *ffmpegSink) Write(pcm []byte) (int, error) {
	return s.stdin.Write(pcm)
}

func (s *ffmpegSink) Close() error {
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encoding failed: %w\nOutput: %s", err, s.stderr.String())
	}
	return nil
}

const flacBlockSize = 4096

// flacSink writes verbatim FLAC frames of flacBlockSize samples
type flacSink struct {
	file     *os.File
	enc      *flac.Encoder
	channels int
	rate     int
	pending  []int16
}

func newFlacSink(outputPath string, sampleRate, channels int) (*flacSink, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: 16,
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	return &flacSink{file: f, enc: enc, channels: channels, rate: sampleRate}, nil
}

func (s *flacSink) Write(pcm []byte) (int, error) {
	s.pending = append(s.pending, bytesToSamples(pcm)...)
	block := flacBlockSize * s.channels
	for len(s.pending) >= block {
		if err := s.writeFrame(s.pending[:block]); err != nil {
			return 0, err
		}
		s.pending = s.pending[block:]
	}
	return len(pcm), nil
}

func (s *flacSink) writeFrame(interleaved []int16) error {
	n := len(interleaved) / s.channels
	subframes := make([]*frame.Subframe, s.channels)
	for c := range subframes {
		samples := make([]int32, n)
		for i := 0; i < n; i++ {
			samples[i] = int32(interleaved[i*s.channels+c])
		}
		subframes[c] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}
	}

	channels := frame.ChannelsMono
	if s.channels == 2 {
		channels = frame.ChannelsLR
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    uint32(s.rate),
			Channels:      channels,
			BitsPerSample: 16,
		},
		Subframes: subframes,
	}
	if err := s.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	return nil
}

func (s *flacSink) Close() error {
	var errs []error
	if len(s.pending) >= s.channels {
		errs = append(errs, s.writeFrame(s.pending[:len(s.pending)-len(s.pending)%s.channels]))
		s.pending = nil
	}
	errs = append(errs, s.enc.Close())
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
