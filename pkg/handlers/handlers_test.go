package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/auth"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
	"github.com/13102180531/ExcelQuery/pkg/llm"
	"github.com/13102180531/ExcelQuery/pkg/services"
)

// mockQueryService lets handler tests script the service outcome.
type mockQueryService struct {
	executeResult *services.QueryResult
	download      *services.Download
	err           error
}

var _ services.QueryService = (*mockQueryService)(nil)

func (m *mockQueryService) Execute(ctx context.Context, req services.QueryRequest) (*services.QueryResult, error) {
	return m.executeResult, m.err
}

func (m *mockQueryService) Download(ctx context.Context, req services.QueryRequest) (*services.Download, error) {
	return m.download, m.err
}

func (m *mockQueryService) DownloadCached(ctx context.Context, resultID string) (*services.Download, error) {
	return m.download, m.err
}

type testEnv struct {
	mux   *http.ServeMux
	auth  auth.AuthService
	query *mockQueryService
	files services.FileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	authService, err := auth.NewAuthService(config.AuthConfig{
		Secret: "test-secret", TokenTTLMinutes: 30, AdminUser: "admin", AdminPassword: "hunter2",
	}, logger)
	require.NoError(t, err)
	mw := auth.NewMiddleware(authService, logger)

	storage := config.StorageConfig{UploadDir: t.TempDir(), MaxUploadBytes: 1 << 20}
	files := services.NewFileService(storage, logger)
	query := &mockQueryService{}

	mux := http.NewServeMux()
	NewHealthHandler(&config.Config{Version: "test", Env: "local"}, logger).RegisterRoutes(mux)
	NewAuthHandler(authService, logger).RegisterRoutes(mux)
	NewFilesHandler(storage, files, mw, logger).RegisterRoutes(mux)
	NewQueryHandler(query, mw, logger).RegisterRoutes(mux)

	return &testEnv{mux: mux, auth: authService, query: query, files: files}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := e.auth.Login("admin", "hunter2")
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, token string, body any) *http.Request {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealthAndPing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var ping PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ping))
	assert.Equal(t, "excelquery", ping.Service)
	assert.Equal(t, "test", ping.Version)
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "hunter2"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)

	rec = env.do(jsonRequest(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(jsonRequest(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/files", nil),
		jsonRequest(http.MethodPost, "/api/query", "", services.QueryRequest{Query: "x"}),
		httptest.NewRequest(http.MethodGet, "/api/results/abc/download", nil),
	} {
		rec := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.Method, req.URL.Path)
	}
}

func multipartUpload(t *testing.T, token string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	rec := env.do(multipartUpload(t, token, map[string]string{
		"good.csv":   "a,b\n1,2\n",
		"legacy.xls": "nope",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Uploaded)
	assert.Equal(t, 1, resp.Failed, "one bad file never fails the batch")
	require.Len(t, resp.Files, 2)

	// Listing shows only the stored file.
	rec = env.do(jsonRequest(http.MethodGet, "/api/files", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)
}

func TestQueryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)
	env.query.executeResult = &services.QueryResult{
		Query:            "price over 15",
		ParsedConditions: filter.Empty(),
		Results:          []map[string]any{{"name": "banana"}},
		RowCount:         1,
		SourceFiles:      []string{"products.csv"},
		ResultID:         "rid-1",
	}

	rec := env.do(jsonRequest(http.MethodPost, "/api/query", token, services.QueryRequest{Query: "price over 15"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp services.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, "rid-1", resp.ResultID)
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	rec := env.do(jsonRequest(http.MethodPost, "/api/query", token, services.QueryRequest{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"provider down", llm.NewError(llm.KindProviderUnavailable, "down", "test", nil), http.StatusServiceUnavailable},
		{"malformed response", llm.NewError(llm.KindResponseMalformed, "bad", "test", nil), http.StatusInternalServerError},
		{"schema invalid", llm.NewError(llm.KindSchemaInvalid, "bad", "test", nil), http.StatusInternalServerError},
		{"no data file", fmt.Errorf("wrap: %w", apperrors.ErrDataFileMissing), http.StatusNotFound},
		{"unknown provider", fmt.Errorf("wrap: %w", apperrors.ErrUnknownProvider), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.query.err = tt.err
			rec := env.do(jsonRequest(http.MethodPost, "/api/query", token, services.QueryRequest{Query: "x"}))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDownloadCachedEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)
	env.query.download = &services.Download{
		Filename:    "products_query_results_20240615103045.xlsx",
		ContentType: dataset.XLSXContentType,
		Content:     []byte("workbook-bytes"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/results/rid-1/download", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dataset.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Disposition"), "products_query_results_"))
	assert.Equal(t, "workbook-bytes", rec.Body.String())
}

func TestDownloadCachedNotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)
	env.query.err = fmt.Errorf("wrap: %w", apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/results/gone/download", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
