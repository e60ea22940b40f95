package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/audiolibrelab/audiodemo/internal/audio"
	"github.com/audiolibrelab/audiodemo/internal/session"
)

// Controller is the session surface exposed over HTTP
type Controller interface {
	ID() string
	Snapshot() session.State
	LastError() string
	ActivePollers() []string
	Tracks() []session.Track

	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	LastRecording() (string, bool)

	PlayLocalFile(ctx context.Context) error
	PlayRemoteFile(ctx context.Context) error
	PlayTrack(ctx context.Context, index int) error
	PlayRecordedFile(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume() error
	Play() error
	StopPlaying(ctx context.Context) error
	Mute()
	Unmute()
	SeekTo(seconds float64) error
	SetSpeed(rate float64) error
	SetSliderVolume(v float64)
}

// DeviceLister enumerates audio devices
type DeviceLister interface {
	ListDevices() ([]audio.DeviceInfo, error)
}

// Server represents the web server for controlling a session
type Server struct {
	session  Controller
	devices  DeviceLister
	audioDir string
	port     string
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	SessionID string        `json:"session_id"`
	State     session.State `json:"state"`
	Message   string        `json:"message"`
	LastError string        `json:"last_error,omitempty"`
	Pollers   []string      `json:"pollers"`
}

// FileInfo contains information about a recording on disk
type FileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	Extension    string    `json:"extension"`
	StreamURL    string    `json:"stream_url"`
}

// FilesResponse represents the JSON response for the recordings endpoint
type FilesResponse struct {
	Files      []FileInfo `json:"files"`
	TotalCount int        `json:"total_count"`
	Directory  string     `json:"directory"`
}

// LastRecordingResponse reports the last recorded file
type LastRecordingResponse struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// DevicesResponse lists capture and playback devices
type DevicesResponse struct {
	Devices []audio.DeviceInfo `json:"devices"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

var recordingExts = map[string]bool{"m4a": true, "caf": true, "flac": true, "mp3": true, "wav": true}

// New creates a new web server instance
func New(sess Controller, devices DeviceLister, audioDir, port string) *Server {
	return &Server{
		session:  sess,
		devices:  devices,
		audioDir: audioDir,
		port:     port,
	}
}

// Handler returns the routes of the control API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/tracks", s.handleTracks)
	mux.HandleFunc("/devices", s.handleDevices)

	mux.HandleFunc("/record/start", s.handleStartRecording)
	mux.HandleFunc("/record/stop", s.handleStopRecording)

	mux.HandleFunc("/play", s.handlePlay)
	mux.HandleFunc("/pause", s.action("pause", s.session.Pause))
	mux.HandleFunc("/resume", s.action("resume", func(context.Context) error { return s.session.Resume() }))
	mux.HandleFunc("/continue", s.action("play", func(context.Context) error { return s.session.Play() }))
	mux.HandleFunc("/stop", s.action("stop_playing", s.session.StopPlaying))
	mux.HandleFunc("/mute", s.action("mute", func(context.Context) error { s.session.Mute(); return nil }))
	mux.HandleFunc("/unmute", s.action("unmute", func(context.Context) error { s.session.Unmute(); return nil }))
	mux.HandleFunc("/seek", s.handleSeek)
	mux.HandleFunc("/speed", s.handleSpeed)
	mux.HandleFunc("/volume", s.handleVolume)

	mux.HandleFunc("/api/last-recording", s.handleLastRecording)
	mux.HandleFunc("/api/recordings", s.handleFiles)
	mux.HandleFunc("/api/recordings/stream/", s.handleFileStream)
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting audio demo web server",
		"port", s.port,
		"session_id", s.session.ID(),
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down web server")
		return srv.Shutdown(shutdownCtx)
	}
}

// handleIndex serves a minimal page listing the API
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Audio Demo</title>
</head>
<body>
    <h1>Audio Demo</h1>
    <ul>
        <li>GET /status - Session state</li>
        <li>POST /record/start, /record/stop - Recording</li>
        <li>POST /play?source=local|remote|recorded|track&amp;index=N - Playback</li>
        <li>POST /pause, /resume, /continue, /stop - Player control</li>
        <li>POST /mute, /unmute, /seek?seconds=8, /speed?rate=1.5, /volume?value=50</li>
        <li>GET /tracks, /devices, /api/recordings, /api/last-recording</li>
    </ul>
</body>
</html>`

// handleStatus returns the current session state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	st := s.session.Snapshot()
	pollers := s.session.ActivePollers()
	if pollers == nil {
		pollers = []string{}
	}
	s.sendJSON(w, StatusResponse{
		SessionID: s.session.ID(),
		State:     st,
		Message:   statusMessage(st),
		LastError: s.session.LastError(),
		Pollers:   pollers,
	})
}

func statusMessage(st session.State) string {
	switch st.Phase {
	case session.PhaseRecording:
		return fmt.Sprintf("Recording to %s", filepath.Base(st.LastRecording))
	case session.PhasePlaying:
		if st.RemainingDuration != nil {
			return fmt.Sprintf("Playing, %.1fs remaining", *st.RemainingDuration)
		}
		return "Playing"
	case session.PhasePaused:
		return "Paused"
	default:
		return "Idle"
	}
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, s.session.Tracks())
}

// handleDevices lists audio devices
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.devices == nil {
		s.sendErrorResponse(w, http.StatusServiceUnavailable, "No audio backend", "operation", "list_devices")
		return
	}
	devices, err := s.devices.ListDevices()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list devices: %v", err), "operation", "list_devices")
		return
	}
	s.sendJSON(w, DevicesResponse{Devices: devices})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	slog.Info("Server: starting recording")
	if err := s.session.StartRecording(r.Context()); err != nil {
		s.sendSessionError(w, err, "start_recording")
		return
	}
	s.sendJSON(w, GenericResponse{Success: true, Message: "Recording started"})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	err := s.session.StopRecording(r.Context())
	if err != nil && !errors.Is(err, audio.ErrNotRecording) {
		s.sendSessionError(w, err, "stop_recording")
		return
	}
	s.sendJSON(w, GenericResponse{Success: true, Message: session.MsgRecorderStop})
}

// handlePlay starts playback of the source named by the "source" parameter
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "play")
		return
	}

	source := r.FormValue("source")
	slog.Debug("Play request received", "source", source, "index", r.FormValue("index"))

	var err error
	switch source {
	case "", "local":
		err = s.session.PlayLocalFile(r.Context())
	case "remote":
		err = s.session.PlayRemoteFile(r.Context())
	case "recorded":
		err = s.session.PlayRecordedFile(r.Context())
	case "track":
		index, convErr := strconv.Atoi(r.FormValue("index"))
		if convErr != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "Track index is required", "operation", "play")
			return
		}
		err = s.session.PlayTrack(r.Context(), index)
	default:
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown source %q", source), "operation", "play")
		return
	}
	if err != nil {
		s.sendSessionError(w, err, "play")
		return
	}
	s.sendJSON(w, GenericResponse{Success: true, Message: "Playback started"})
}

// action adapts a parameterless session command to a POST endpoint
func (s *Server) action(name string, fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := fn(r.Context()); err != nil {
			s.sendSessionError(w, err, name)
			return
		}
		s.sendJSON(w, GenericResponse{Success: true, Message: name + " ok"})
	}
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	s.floatAction(w, r, "seconds", "seek", s.session.SeekTo)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	s.floatAction(w, r, "rate", "speed", s.session.SetSpeed)
}

// handleVolume moves the volume slider; value is on the 0-100 scale
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	s.floatAction(w, r, "value", "volume", func(v float64) error {
		if v < 0 || v > 100 {
			return fmt.Errorf("volume %.1f out of range [0, 100]: %w", v, errBadParam)
		}
		s.session.SetSliderVolume(v)
		return nil
	})
}

var errBadParam = errors.New("bad parameter")

func (s *Server) floatAction(w http.ResponseWriter, r *http.Request, param, name string, fn func(float64) error) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", name)
		return
	}
	v, err := strconv.ParseFloat(r.FormValue(param), 64)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Parameter %q must be a number", param), "operation", name)
		return
	}
	if err := fn(v); err != nil {
		s.sendSessionError(w, err, name)
		return
	}
	s.sendJSON(w, GenericResponse{Success: true, Message: name + " ok"})
}

func (s *Server) handleLastRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	path, exists := s.session.LastRecording()
	s.sendJSON(w, LastRecordingResponse{Path: path, Exists: exists})
}

// handleFiles lists recordings in the audio directory, newest first
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	files, err := os.ReadDir(s.audioDir)
	if err != nil && !os.IsNotExist(err) {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read audio directory: %v", err), "operation", "list_recordings")
		return
	}

	audioFiles := []FileInfo{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name())), ".")
		if !recordingExts[ext] {
			continue
		}
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}
		audioFiles = append(audioFiles, FileInfo{
			Name:         file.Name(),
			Path:         filepath.Join(s.audioDir, file.Name()),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			Extension:    ext,
			StreamURL:    "/api/recordings/stream/" + file.Name(),
		})
	}

	sort.Slice(audioFiles, func(i, j int) bool {
		return audioFiles[i].ModTime.After(audioFiles[j].ModTime)
	})

	s.sendJSON(w, FilesResponse{
		Files:      audioFiles,
		TotalCount: len(audioFiles),
		Directory:  s.audioDir,
	})
}

// handleFileStream streams a recording
func (s *Server) handleFileStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/api/recordings/stream/")
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}
	// prevent path traversal
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !recordingExts[ext] {
		http.Error(w, "File type not supported", http.StatusForbidden)
		return
	}

	filePath := filepath.Join(s.audioDir, filename)
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "File not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error accessing file", http.StatusInternalServerError)
		}
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "audio/" + ext
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(GenericResponse{Success: false, Error: "Method not allowed"})
	return false
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendSessionError maps session errors onto HTTP status codes
func (s *Server) sendSessionError(w http.ResponseWriter, err error, operation string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadParam):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrNotPlaying),
		errors.Is(err, session.ErrNotPaused),
		errors.Is(err, session.ErrStale),
		errors.Is(err, audio.ErrNoTrack):
		status = http.StatusConflict
	case errors.Is(err, session.ErrCannotRecord),
		errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	s.sendErrorResponse(w, status, err.Error(), "operation", operation)
}

// sendErrorResponse logs the error and sends a JSON error body
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...any) {
	logFields := []any{"error_message", errorMsg, "status_code", statusCode}
	logFields = append(logFields, logContext...)
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(GenericResponse{Success: false, Error: errorMsg})
}

func getLocalIP() string {
	// dialing UDP sends nothing; it only picks the outbound interface
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
