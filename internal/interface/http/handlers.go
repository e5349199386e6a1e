package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/quizhub/rewards-hub/internal/application/command"
	"github.com/quizhub/rewards-hub/internal/application/query"
	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "rewards-hub",
		"version": "v1",
		"endpoints": []string{
			"GET /health",
			"GET /api/v1/leaderboard",
			"GET /api/v1/users/{id}/rewards",
			"POST /api/v1/rewards/init",
			"POST /api/v1/rewards/process",
			"GET /api/v1/rewards/status",
		},
	})
}

// handleHealth returns the aggregated health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())

	httpStatus := http.StatusOK
	if !status.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, status)
}

// handleReady reports readiness for traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())

	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive reports process liveness. It never touches dependencies.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// initRequest is the optional body for POST /api/v1/rewards/init.
type initRequest struct {
	Month      int      `json:"month"`
	Year       int      `json:"year"`
	Categories []string `json:"categories"`
	BatchSize  int      `json:"batch_size"`
}

// handleRewardsInit freezes the period's rankings and creates reward jobs.
// With an empty body it targets the previous calendar month.
func (s *Server) handleRewardsInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cmd := command.InitMonthCommand{
		Month:     req.Month,
		Year:      req.Year,
		BatchSize: req.BatchSize,
	}
	for _, c := range req.Categories {
		cmd.Categories = append(cmd.Categories, ranking.Category(c))
	}

	result, err := s.deps.InitMonth.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Failed() {
		// Partial success still reports per-category outcomes.
		status = http.StatusMultiStatus
	}

	writeJSON(w, status, result)
}

// processRequest is the optional body for POST /api/v1/rewards/process.
type processRequest struct {
	BudgetSeconds int `json:"budget_seconds"`
}

// handleRewardsProcess advances all claimable jobs within the wall-clock
// budget. External cron calls this every minute or two until the month
// drains.
func (s *Server) handleRewardsProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cmd := command.ProcessJobsCommand{}
	if req.BudgetSeconds > 0 {
		cmd.Budget = time.Duration(req.BudgetSeconds) * time.Second
	}

	result, err := s.deps.ProcessJobs.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRewardsStatus reports job counts and recent job progress.
func (s *Server) handleRewardsStatus(w http.ResponseWriter, r *http.Request) {
	limit := getQueryParamInt(r, "limit", query.DefaultRecentJobs)

	result, err := s.deps.JobStatus.Handle(r.Context(), query.JobStatusQuery{Limit: limit})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUserRewards returns a user's reward history, newest first.
func (s *Server) handleUserRewards(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_user_id", "User ID must be a positive integer")
		return
	}

	limit := getQueryParamInt(r, "limit", 0)

	result, handleErr := s.deps.RewardHistory.Handle(r.Context(), query.RewardHistoryQuery{
		UserID: userID,
		Limit:  limit,
	})
	if handleErr != nil {
		writeDomainError(w, handleErr)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLeaderboard returns one page of a period's frozen ranking.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = string(ranking.CategoryStudents)
	}

	q := query.LeaderboardQuery{
		Category: ranking.Category(category),
		Month:    getQueryParamInt(r, "month", 0),
		Year:     getQueryParamInt(r, "year", 0),
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "page_size", query.DefaultLeaderboardPageSize),
	}

	result, err := s.deps.Leaderboard.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// decodeJSONBody decodes an optional JSON body. An empty body is fine,
// trailing garbage is not.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
