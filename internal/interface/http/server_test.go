package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/application/command"
	"github.com/quizhub/rewards-hub/internal/application/query"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/user"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/memory"
	"github.com/quizhub/rewards-hub/pkg/apikey"
	"github.com/quizhub/rewards-hub/pkg/logger"
)

const testAPIKey = "test-admin-key"

type testServer struct {
	server *Server
	users  *memory.UserRepository
	jobs   *memory.RewardJobRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := memory.NewUserRepository()
	snapshots := memory.NewSnapshotRepository()
	jobs := memory.NewRewardJobRepository()
	ledger := memory.NewRewardLedger(users)
	log := logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})

	hash, err := apikey.HashKey(testAPIKey)
	require.NoError(t, err)
	verifier, err := apikey.NewVerifier(hash)
	require.NoError(t, err)

	deps := Dependencies{
		InitMonth:     command.NewInitMonthHandler(users, snapshots, jobs, nil, log, command.InitMonthHandlerConfig{}),
		ProcessJobs:   command.NewProcessJobsHandler(jobs, snapshots, ledger, reward.DefaultPlan(), nil, log, command.ProcessJobsHandlerConfig{}),
		JobStatus:     query.NewJobStatusHandler(jobs),
		RewardHistory: query.NewRewardHistoryHandler(ledger, nil, 0, log),
		Leaderboard:   query.NewLeaderboardHandler(snapshots, nil, nil, 0, log),
		Verifier:      verifier,
		Logger:        log,
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	return &testServer{
		server: NewServer(cfg, deps),
		users:  users,
		jobs:   jobs,
	}
}

func (ts *testServer) seedStudents(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		u, err := user.NewUser(user.NewUserParams{
			ID:          int64(i),
			DisplayName: fmt.Sprintf("student-%d", i),
			Role:        user.RoleStudent,
		})
		require.NoError(t, err)
		u.Student.TotalTests = n - i + 1
		ts.users.Add(u)
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/healthz", "/ready", "/live", "/"} {
		rec := ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAdminEndpointsRequireAPIKey(t *testing.T) {
	ts := newTestServer(t)
	ts.seedStudents(t, 5)

	// Missing key
	rec := ts.do(t, http.MethodPost, "/api/v1/rewards/init", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key
	rec = ts.do(t, http.MethodPost, "/api/v1/rewards/init", nil, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Rejection happens before any side effect.
	counts, err := ts.jobs.CountByStatus(context.Background())
	require.NoError(t, err)
	for _, n := range counts {
		assert.Zero(t, n)
	}

	// Valid key via header
	rec = ts.do(t, http.MethodPost, "/api/v1/rewards/init", map[string]any{"month": 2, "year": 2025}, testAPIKey)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Valid key via query parameter
	rec = ts.do(t, http.MethodGet, "/api/v1/rewards/status?api_key="+testAPIKey, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRewardPipelineOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedStudents(t, 10)

	rec := ts.do(t, http.MethodPost, "/api/v1/rewards/init",
		map[string]any{"month": 2, "year": 2025, "categories": []string{"students"}}, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var initResult command.InitMonthResult
	decodeData(t, rec, &initResult)
	require.Len(t, initResult.Categories, 1)
	assert.Equal(t, 10, initResult.Categories[0].TotalUsers)

	rec = ts.do(t, http.MethodPost, "/api/v1/rewards/process", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var processResult command.ProcessJobsResult
	decodeData(t, rec, &processResult)
	assert.Equal(t, 1, processResult.Claimed)
	assert.Equal(t, 1, processResult.Completed)

	// Status shows the completed job.
	rec = ts.do(t, http.MethodGet, "/api/v1/rewards/status", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var status query.JobStatusResult
	decodeData(t, rec, &status)
	assert.Equal(t, 1, status.Counts[reward.JobCompleted])
	require.Len(t, status.Recent, 1)
	assert.Equal(t, 10, status.Recent[0].ProcessedUsers)

	// The champion's history is publicly readable.
	rec = ts.do(t, http.MethodGet, "/api/v1/users/1/rewards", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history query.RewardHistoryResult
	decodeData(t, rec, &history)
	require.Len(t, history.Rewards, 1)
	assert.Equal(t, "champion", history.Rewards[0].Tier)
	assert.Equal(t, 1, history.Rewards[0].Rank)

	// The frozen leaderboard is publicly readable.
	rec = ts.do(t, http.MethodGet, "/api/v1/leaderboard?category=students&month=2&year=2025&page_size=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUserRewardsValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/abc/rewards", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/-5/rewards", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown user simply has an empty history.
	rec = ts.do(t, http.MethodGet, "/api/v1/users/999/rewards", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaderboardUnknownPeriodReturns404(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/leaderboard?month=1&year=2020", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedInitBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rewards/init", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
