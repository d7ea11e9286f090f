package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	redisinfra "sentinelzap/internal/infra/redis"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrChipNotConnected):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyInitializing), errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrWarmupNotRunning):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrLockNotAcquired), errors.Is(err, domain.ErrQueueFull):
		code = http.StatusTooManyRequests
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// userID reads the acting user from the query string. The API key authorizes
// the caller; user_id scopes the operation.
func userID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return 0, domain.ErrInvalidArgument
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

func chipID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chipID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

type sendMessageRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	ChipID      int64  `json:"chipId,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.limiter != nil && s.cfg.RateLimit > 0 {
		ok, err := s.limiter.Allow(r.Context(), redisinfra.UserSendKey(uid), s.cfg.RateLimit, time.Minute)
		if err == nil && !ok {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	var outcome any
	if req.ChipID > 0 {
		outcome, err = s.rot.SendViaChip(r.Context(), uid, req.ChipID, req.PhoneNumber, req.Message)
	} else {
		outcome, err = s.rot.SendViaRotation(r.Context(), uid, req.PhoneNumber, req.Message)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.rot.GetRotationStatus(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type createChipRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

func (s *Server) handleCreateChip(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createChipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	chip, err := s.session.CreateChip(r.Context(), uid, req.Name, req.PhoneNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chip)
}

func (s *Server) handleListChips(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	chips, err := s.session.ListChips(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if chips == nil {
		chips = []*model.Chip{}
	}
	writeJSON(w, http.StatusOK, chips)
}

func (s *Server) handleRemoveChip(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.RemoveChip(r.Context(), uid, cid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnectChip(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.ConnectChip(r.Context(), uid, cid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "initializing"})
}

func (s *Server) handleDisconnectChip(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.DisconnectChip(r.Context(), uid, cid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleGetQR(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	qr, err := s.session.GetQRCode(r.Context(), uid, cid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qrCode": qr})
}

func (s *Server) handleWarmupStart(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.warmup.Start(r.Context(), uid, cid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

type warmupStopRequest struct {
	MarkCompleted bool `json:"markCompleted"`
}

func (s *Server) handleWarmupStop(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req warmupStopRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.warmup.Stop(r.Context(), uid, cid, req.MarkCompleted); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleWarmupStatus(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.warmup.GetWarmupStatus(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleWarmupProgress(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.warmup.Progress(r.Context(), uid, cid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetWarmupSettings(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	settings, err := s.warmup.Settings(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateWarmupSettings(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var settings model.WarmupSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	settings.UserID = uid
	if err := s.warmup.UpdateSettings(r.Context(), &settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleWarmupHistory(w http.ResponseWriter, r *http.Request) {
	uid, cid, err := s.scope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.warmup.History(r.Context(), uid, cid, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.WarmupHistory{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWarmupSendNow(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sent, err := s.warmup.SendWarmupNow(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

func (s *Server) scope(r *http.Request) (int64, int64, error) {
	uid, err := userID(r)
	if err != nil {
		return 0, 0, err
	}
	cid, err := chipID(r)
	if err != nil {
		return 0, 0, err
	}
	return uid, cid, nil
}
