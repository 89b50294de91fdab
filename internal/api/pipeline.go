package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/relayvox/internal/pipeline"
)

// statusResponse is returned by every control operation.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// decodeRunConfig reads a RunConfig from the request body on top of the
// current defaults. An empty body yields the defaults unchanged.
func (s *Server) decodeRunConfig(w http.ResponseWriter, r *http.Request) (pipeline.RunConfig, error) {
	cfg := s.Defaults()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return pipeline.RunConfig{}, err
	}
	if cfg.SilenceSeconds < 0 {
		return pipeline.RunConfig{}, errors.New("silence_seconds must not be negative")
	}
	return cfg, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.decodeRunConfig(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: s.pipeline.Start(cfg)})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: s.pipeline.Stop()})
}

func (s *Server) handleHardStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: s.pipeline.HardStop()})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.decodeRunConfig(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.SetDefaults(cfg)
	status := s.pipeline.RestartWith(cfg)
	voice := cfg.Voice
	if voice == "" {
		voice = "auto"
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status: status,
		Message: fmt.Sprintf("Applied settings - source %s, target %s, voice %s, silence %.1fs (%s).",
			cfg.Source, cfg.Target, voice, cfg.SilenceSeconds, status),
	})
}

type silenceRequest struct {
	SilenceSeconds *float64 `json:"silence_seconds"`
}

func (s *Server) handleSilence(w http.ResponseWriter, r *http.Request) {
	var req silenceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SilenceSeconds == nil {
		writeError(w, http.StatusBadRequest, "silence_seconds is required")
		return
	}
	secs := *req.SilenceSeconds
	if secs < 0 {
		writeError(w, http.StatusBadRequest, "silence_seconds must not be negative")
		return
	}

	s.mu.Lock()
	s.defaults.SilenceSeconds = secs
	s.mu.Unlock()

	if s.pipeline.IsRunning() {
		cfg := s.pipeline.Config()
		cfg.SilenceSeconds = secs
		status := s.pipeline.RestartWith(cfg)
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  status,
			Message: fmt.Sprintf("Restarted with silence duration %.1fs (%s).", secs, status),
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  s.pipeline.Snapshot().Status,
		Message: fmt.Sprintf("Silence duration set to %.1fs (applies on next start).", secs),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Snapshot())
}

// handleStream upgrades to a websocket and pushes the snapshot whenever it
// differs from the last one sent, checking once per stream interval. Client
// messages are ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("api: stream upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var last []byte
	for {
		data, err := json.Marshal(s.pipeline.Snapshot())
		if err != nil {
			s.logger.Warn("api: encode snapshot", "err", err)
			conn.Close(websocket.StatusInternalError, "encode failed")
			return
		}
		if !bytes.Equal(data, last) {
			if err := s.writeFrame(ctx, conn, data); err != nil {
				s.logger.Debug("api: stream closed", "err", err)
				return
			}
			last = data
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
