package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
)

func TestGenerateReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.CreateIndication(ctx, &domain.ClinicalIndication{
		ID: "ci-1", Code: "R208", Name: "Inherited breast cancer",
	}))
	require.NoError(t, tx.CreatePanel(ctx, &domain.Panel{
		ID: "p-1", ExternalID: "123", Name: "Cancer panel", Version: domain.SortableVersion("2.1"),
	}))
	require.NoError(t, tx.CreateGene(ctx, &domain.Gene{ID: "g-1", HGNCID: "HGNC:1100", Symbol: "BRCA1"}))
	require.NoError(t, tx.CreateGene(ctx, &domain.Gene{ID: "g-2", HGNCID: "HGNC:1101", Symbol: "BRCA2"}))

	require.NoError(t, tx.CreatePanelGene(ctx, &domain.PanelGene{
		ID: "pg-1", PanelID: "p-1", GeneID: "g-1", Confidence: "3", Active: true,
	}))
	// Inactive genes never appear in the report.
	require.NoError(t, tx.CreatePanelGene(ctx, &domain.PanelGene{
		ID: "pg-2", PanelID: "p-1", GeneID: "g-2", Confidence: "2", Active: false, Pending: true,
	}))

	require.NoError(t, tx.CreateLink(ctx, &domain.Link{
		ID: "l-1", IndicationID: "ci-1", PanelID: "p-1", Current: true, Pending: false,
	}))

	// A provisional link to another panel must not leak into the report.
	require.NoError(t, tx.CreatePanel(ctx, &domain.Panel{ID: "p-2", Name: "HGNC:1100", Custom: true}))
	require.NoError(t, tx.CreatePanelGene(ctx, &domain.PanelGene{
		ID: "pg-3", PanelID: "p-2", GeneID: "g-1", Confidence: "3", Active: true,
	}))
	require.NoError(t, tx.CreateLink(ctx, &domain.Link{
		ID: "l-2", IndicationID: "ci-1", PanelID: "p-2", Current: true, Pending: true,
	}))
	require.NoError(t, tx.Commit())

	rows, err := env.report.GenerateReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "R208", row.IndicationCode)
	assert.Equal(t, "Inherited breast cancer", row.IndicationName)
	assert.Equal(t, "Cancer panel", row.PanelName)
	assert.Equal(t, "2.1", row.PanelVersion)
	assert.Equal(t, "HGNC:1100", row.GeneHGNC)
	assert.Equal(t, "BRCA1", row.GeneSymbol)
}

func TestGenerateReportEmpty(t *testing.T) {
	env := newTestEnv(t)

	rows, err := env.report.GenerateReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
