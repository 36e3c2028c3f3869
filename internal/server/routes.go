package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/library"
	"github.com/zsiec/slomo/internal/media"
	"github.com/zsiec/slomo/pkg/version"
)

// TimeCodeResponse maps a playback position onto a recording's frames.
type TimeCodeResponse struct {
	ID          string        `json:"id"`
	Position    time.Duration `json:"position_ns"`
	FrameIndex  int64         `json:"frame_index"`
	FrameStart  time.Duration `json:"frame_start_ns"`
	TimeCode    string        `json:"time_code"`
	TotalFrames int           `json:"total_frames"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.index.List(r.Context())
	if err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "failed to list recordings"))
		return
	}
	s.writeJSON(w, r, http.StatusOK, struct {
		Recordings []*library.Recording `json:"recordings"`
		Count      int                  `json:"count"`
	}{recs, len(recs)})
}

func (s *Server) recording(w http.ResponseWriter, r *http.Request) (*library.Recording, bool) {
	rec, err := s.index.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.recording(w, r); ok {
		s.writeJSON(w, r, http.StatusOK, rec)
	}
}

// handleDeleteRecording removes the index entry, and the file too when
// remove_file=true.
func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recording(w, r)
	if !ok {
		return
	}
	removeFile, _ := strconv.ParseBool(r.URL.Query().Get("remove_file"))

	if err := s.index.Delete(r.Context(), rec.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if removeFile {
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			s.writeError(w, r, errors.WrapInternalError(err, "recording unindexed but file removal failed"))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// parsePosition accepts a Go duration ("1.5s", "250ms") or plain seconds.
func parsePosition(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.NewValidationError("query parameter t is required")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return 0, errors.NewValidationError("t cannot be negative")
		}
		return d, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return 0, errors.NewValidationError("t must be a duration or a non-negative number of seconds")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (s *Server) handleTimeCode(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recording(w, r)
	if !ok {
		return
	}
	pos, err := parsePosition(r.URL.Query().Get("t"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	idx := rec.FrameAt(pos)
	s.writeJSON(w, r, http.StatusOK, TimeCodeResponse{
		ID:          rec.ID,
		Position:    pos,
		FrameIndex:  idx,
		FrameStart:  media.FrameStart(idx, rec.FrameRate),
		TimeCode:    media.FormatTimeCode(idx, rec.FrameRate),
		TotalFrames: rec.Frames,
	})
}

// handleAssetInfo reads the recording file itself, which also verifies
// that it is still playable.
func (s *Server) handleAssetInfo(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.recording(w, r)
	if !ok {
		return
	}
	asset, err := s.openAsset(rec.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, asset.Info())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
