package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/storage"
)

type testEnv struct {
	store       storage.Store
	reconciler  *Reconciler
	panels      *PanelService
	links       *LinkService
	review      *ReviewService
	report      *ReportService
	transcripts *TranscriptIngester
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	versions, err := NewLatestVersionIndex(16)
	require.NoError(t, err)

	gate := NewVersionGate(logger)
	links := NewLinkService(logger)
	panels := NewPanelService(store, links, logger)

	return &testEnv{
		store:       store,
		reconciler:  NewReconciler(store, gate, versions, panels, links, logger),
		panels:      panels,
		links:       links,
		review:      NewReviewService(store, logger),
		report:      NewReportService(store, logger),
		transcripts: NewTranscriptIngester(store, gate, versions, logger),
	}
}

func directoryFeed(version string, indications ...domain.IndicationRecord) *domain.ReleaseFeed {
	return &domain.ReleaseFeed{
		Version:     version,
		Source:      "test-directory",
		Date:        time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Indications: indications,
	}
}

func countAudit(t *testing.T, env *testEnv) int64 {
	t.Helper()
	tx, err := env.store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()
	n, err := tx.CountAuditNotes(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return n
}

func panelRef(externalID string) domain.PanelReference {
	return domain.PanelReference{PanelID: externalID}
}

func geneRef(hgncID string) domain.PanelReference {
	return domain.PanelReference{GeneID: hgncID}
}
