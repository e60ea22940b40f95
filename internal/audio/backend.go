package audio

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/audiolibrelab/audiodemo/internal/config"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMalgo BackendType = "malgo"
	BackendTypeAuto  BackendType = "auto"
)

// DeviceInfo describes an input or output device
type DeviceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	Capture   bool   `json:"capture"`
}

// Backend creates players and recorders sharing one device context
type Backend interface {
	NewPlayer() Player
	NewRecorder() Recorder

	// List available capture and playback devices
	ListDevices() ([]DeviceInfo, error)

	GetType() BackendType
	Close() error
}

// NewBackend creates the backend selected by configuration
func NewBackend(cfg *config.Config) (Backend, error) {
	switch determineBackend(cfg) {
	case BackendTypeMalgo:
		return NewMalgoBackend(cfg, &http.Client{Timeout: 60 * time.Second})
	default:
		return nil, fmt.Errorf("unsupported audio backend: %s", cfg.Audio.Backend)
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "malgo", "auto", "":
		// miniaudio picks the platform API itself
		return BackendTypeMalgo
	}
	return BackendType(cfg.Audio.Backend)
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo}
}
