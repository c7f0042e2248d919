package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/service"
	"github.com/panel-curation-server/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	versions, err := service.NewLatestVersionIndex(16)
	require.NoError(t, err)

	gate := service.NewVersionGate(logger)
	links := service.NewLinkService(logger)
	panels := service.NewPanelService(store, links, logger)

	cfg := &domain.Config{
		Server:  domain.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logging: domain.LoggingConfig{Level: "error"},
	}

	return NewServer(cfg, Services{
		Reconciler:  service.NewReconciler(store, gate, versions, panels, links, logger),
		Panels:      panels,
		Transcripts: service.NewTranscriptIngester(store, gate, versions, logger),
		Review:      service.NewReviewService(store, logger),
		Report:      service.NewReportService(store, logger),
	}, logger)
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", "curator")

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestImportReviewReportFlow(t *testing.T) {
	server := newTestServer(t)

	feed := domain.ReleaseFeed{
		Version: "1.0",
		Source:  "test-directory",
		Date:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Indications: []domain.IndicationRecord{
			{Code: "R1", Name: "n", Panels: []domain.PanelReference{{GeneID: "HGNC:1100"}}},
		},
	}

	w := doJSON(t, server, http.MethodPost, "/api/v1/imports/test-directory", feed)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Same version again conflicts.
	w = doJSON(t, server, http.MethodPost, "/api/v1/imports/test-directory", feed)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The gene-list link awaits review.
	w = doJSON(t, server, http.MethodGet, "/api/v1/reviews/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var pending struct {
		Links []domain.Link `json:"links"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Equal(t, 1, pending.Count)

	// Approving it moves it into the report.
	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/v1/links/%s/approve", pending.Links[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.LinkActive))

	w = doJSON(t, server, http.MethodGet, "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Rows  []domain.ReportRow `json:"rows"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 1, report.Count)
	assert.Equal(t, "R1", report.Rows[0].IndicationCode)
	assert.Equal(t, "HGNC:1100", report.Rows[0].GeneHGNC)

	// The review action is attributed to the named user.
	w = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/v1/audit/link/%s", pending.Links[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "curator")
}

func TestImportPanelEndpoint(t *testing.T) {
	server := newTestServer(t)

	body := map[string]interface{}{
		"panel": domain.PanelDefinition{
			ExternalID: "123", Name: "Cancer panel", Version: "1.0",
			Genes: []domain.PanelGeneDefinition{{HGNCID: "HGNC:1100", Confidence: "3"}},
		},
	}

	w := doJSON(t, server, http.MethodPost, "/api/v1/panels", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/v1/panels", body)
	assert.Equal(t, http.StatusOK, w.Code, "re-import of the same identity is idempotent")
}

func TestReviewActionMissingLink(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/links/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
