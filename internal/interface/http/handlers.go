package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alem-hub/alem-economy/internal/application/query"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

type jobDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	LastRun     string `json:"last_run,omitempty"`
	NextRun     string `json:"next_run,omitempty"`
	RunCount    int64  `json:"run_count"`
	FailCount   int64  `json:"fail_count"`
	LastError   string `json:"last_error,omitempty"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.deps.Jobs.ListJobs()
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		dto := jobDTO{
			Name:        j.Name,
			Description: j.Description,
			Schedule:    j.Schedule,
			RunCount:    j.RunCount,
			FailCount:   j.FailCount,
		}
		if !j.LastRun.IsZero() {
			dto.LastRun = j.LastRun.UTC().Format(timeLayout)
		}
		if !j.NextRun.IsZero() {
			dto.NextRun = j.NextRun.UTC().Format(timeLayout)
		}
		if j.LastResult != nil && j.LastResult.Error != nil {
			dto.LastError = j.LastResult.Error.Error()
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT VIEWS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Summary.Handle(r.Context(), query.GetAccountSummaryQuery{
		AccountID: chi.URLParam(r, "accountID"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "limit must be an integer")
		return
	}
	cursor, err := intParam(r, "cursor")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "cursor must be an integer")
		return
	}

	dto, err := s.deps.History.Handle(r.Context(), query.GetHistoryQuery{
		AccountID: chi.URLParam(r, "accountID"),
		Currency:  ledger.Currency(r.URL.Query().Get("currency")),
		Limit:     int(limit),
		Cursor:    cursor,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleAccountAchievements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.deps.Achievements.ForAccount(r.Context(), query.ListAccountAchievementsQuery{
		AccountID:    chi.URLParam(r, "accountID"),
		UnlockedOnly: q.Get("unlocked") == "true",
		UnseenOnly:   q.Get("unseen") == "true",
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": nonNil(list)})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Achievements.Catalog(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": nonNil(list)})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

const timeLayout = "2006-01-02T15:04:05Z07:00"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *shared.DomainError
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", messageOf(err, de))
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", messageOf(err, de))
	case shared.IsRetryable(err):
		writeJSONError(w, http.StatusServiceUnavailable, "busy", "storage is busy, retry later")
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func messageOf(err error, de *shared.DomainError) string {
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func intParam(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func nonNil(list []query.AchievementDTO) []query.AchievementDTO {
	if list == nil {
		return []query.AchievementDTO{}
	}
	return list
}
