package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	batchrepo "github.com/smallbiznis/renewly/internal/batch/repository"
	batchservice "github.com/smallbiznis/renewly/internal/batch/service"
	"github.com/smallbiznis/renewly/internal/clock"
	"github.com/smallbiznis/renewly/internal/config"
	historyservice "github.com/smallbiznis/renewly/internal/history/service"
	messagerepo "github.com/smallbiznis/renewly/internal/message/repository"
	messageservice "github.com/smallbiznis/renewly/internal/message/service"
	"github.com/smallbiznis/renewly/internal/migration"
	"github.com/smallbiznis/renewly/internal/observability"
	"github.com/smallbiznis/renewly/internal/pipeline"
	"github.com/smallbiznis/renewly/internal/ratelimit"
	"github.com/smallbiznis/renewly/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithLimiter(t, nil)
}

func newTestServerWithLimiter(t *testing.T, limiter *ratelimit.UploadLimiter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := dbtest.Open(t, migration.Models()...)
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2025, time.December, 10, 9, 0, 0, 0, time.UTC))

	store := batchservice.NewStore(batchservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: batchrepo.Provide(),
	})
	templates := messageservice.NewService(messageservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: messagerepo.Provide(),
	})
	history := historyservice.NewService(historyservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fake,
	})
	p, err := pipeline.New(pipeline.Params{
		Log:       zap.NewNop(),
		Clock:     fake,
		GenID:     node,
		Store:     store,
		Templates: templates,
		History:   history,
	})
	require.NoError(t, err)

	return NewServer(ServerParams{
		Gin:       NewEngine(observability.Config{Environment: "test"}, nil),
		Cfg:       config.Config{Environment: "test"},
		Log:       zap.NewNop(),
		Pipeline:  p,
		Store:     store,
		Templates: templates,
		History:   history,

		UploadLimiter: limiter,
	})
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTenantID, "4242")
	req.Header.Set(HeaderTenantName, "Iron Temple")

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func members() []map[string]string {
	row := func(name, end string) map[string]string {
		return map[string]string{
			"customer_name":           name,
			"phone_number":            "+91 98765 43210",
			"subscription_start_date": "2025-01-01",
			"subscription_end_date":   end,
		}
	}
	return []map[string]string{
		row("Asha Rao", "2025-12-11"),
		row("Vikram Shah", "2026-02-01"),
		row("Meera Iyer", "2025-12-09"),
		row("Kabir Das", "2025-12-13"),
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestTenantHeaderRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")

	req = httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	req.Header.Set(HeaderTenantID, "not-a-number")
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_tenant_id")
}

func TestCreateBatchAndReadBack(t *testing.T) {
	s := newTestServer(t)

	w, body := do(t, s, http.MethodPost, "/v1/batches", gin.H{"source_label": "members.xlsx", "members": members()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["member_count"])
	assert.Equal(t, float64(1), body["excluded"])
	assert.Equal(t, "2025-12-10", body["reference_date"])
	assert.Equal(t, true, body["history_recorded"])
	batchID, _ := body["batch_id"].(string)
	require.NotEmpty(t, batchID)

	counts, ok := body["tier_counts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), counts["1"])
	assert.Equal(t, float64(1), counts["3"])
	assert.Equal(t, float64(0), counts["30"])

	w, body = do(t, s, http.MethodGet, "/v1/batches/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, batchID, data["batch_id"])

	w, body = do(t, s, http.MethodGet, "/v1/batches/"+batchID+"/messages?tier=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := body["data"].([]any)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "Meera Iyer", first["customer_name"])
	assert.Equal(t, float64(-1), first["days_remaining"])

	w, body = do(t, s, http.MethodGet, "/v1/batches/"+batchID+"/tier-counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["total"])

	w, body = do(t, s, http.MethodGet, "/v1/uploads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].([]any), 1)
	assert.Equal(t, false, body["has_more"])
}

func TestCreateBatchInputContractViolation(t *testing.T) {
	s := newTestServer(t)

	rows := members()
	rows[1]["subscription_end_date"] = "01/02/2026"
	w, body := do(t, s, http.MethodPost, "/v1/batches", gin.H{"members": rows})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "validation_error", body["error_type"])

	rows = members()
	rows[0]["subscription_start_date"] = "2026-01-01"
	w, body = do(t, s, http.MethodPost, "/v1/batches", gin.H{"members": rows})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pipeline.StageComputeRemaining, body["stage"])

	w, _ = do(t, s, http.MethodGet, "/v1/batches/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBatchRequiresTenantName(t *testing.T) {
	s := newTestServer(t)

	raw, _ := json.Marshal(gin.H{"members": members()})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTenantID, "4242")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tenant_name")
}

func TestUnknownBatchIsNotFound(t *testing.T) {
	s := newTestServer(t)

	w, body := do(t, s, http.MethodGet, "/v1/batches/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["type"])

	w, _ = do(t, s, http.MethodGet, "/v1/batches/missing/messages?tier=2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplateRoutes(t *testing.T) {
	s := newTestServer(t)

	w, _ := do(t, s, http.MethodPut, "/v1/templates/1", gin.H{"body": "{name} {tenant_name} {date}"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "{expiry_text}")

	w, body := do(t, s, http.MethodPut, "/v1/templates/3", gin.H{"body": "{name}, {tenant_name} ends {date}"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, body["data"].(map[string]any)["is_default"])

	w, body = do(t, s, http.MethodGet, "/v1/templates/3/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[Customer Name], Iron Temple ends [DD-MM-YYYY]", body["data"].(map[string]any)["preview"])

	w, body = do(t, s, http.MethodGet, "/v1/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].([]any), 4)

	w, body = do(t, s, http.MethodDelete, "/v1/templates/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["is_default"])

	w, _ = do(t, s, http.MethodPut, "/v1/templates/4", gin.H{"body": "{name}"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapError(t *testing.T) {
	status, payload := mapError(pipeline.ErrTemplates)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "service_unavailable", payload.Type)

	status, _ = mapError(&pipeline.RunError{Stage: pipeline.StagePersist, Err: pipeline.ErrPersistence})
	assert.Equal(t, http.StatusInternalServerError, status)

	typ, code := classifyErrorForLog(&pipeline.RunError{Stage: pipeline.StagePersist, Err: pipeline.ErrPersistence})
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "persistence_failure", code)
}

func TestUploadRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	limiter, err := ratelimit.NewUploadLimiter(ratelimit.Params{
		Config: config.Config{RateLimit: config.RateLimitConfig{
			Enabled:     true,
			RedisAddr:   mr.Addr(),
			UploadRate:  0.01,
			UploadBurst: 1,
		}},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)
	s := newTestServerWithLimiter(t, limiter)

	w, _ := do(t, s, http.MethodPost, "/v1/batches", gin.H{"members": members()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body := do(t, s, http.MethodPost, "/v1/batches", gin.H{"members": members()})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "100", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", body["error"].(map[string]any)["type"])

	// Lock is released after the first request.
	assert.False(t, mr.Exists("renewly:upload:lock:4242"))
}
