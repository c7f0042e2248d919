package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
)

func allReferenceColumns() map[string][]string {
	return map[string][]string{
		"mane":        {"HGNC ID", "RefSeq nuc", "MANE TYPE"},
		"markname":    {"gene_id"},
		"gene2refseq": {"refcore", "refversion"},
	}
}

func TestIngestRejectsMissingColumns(t *testing.T) {
	env := newTestEnv(t)

	columns := allReferenceColumns()
	columns["mane"] = []string{"HGNC ID"}

	feed := &TranscriptFeed{
		ReferenceGenome: "GRCh38",
		ManeVersion:     "1.0",
		HGMDVersion:     "2026.1",
		Columns:         columns,
	}

	_, err := env.transcripts.Ingest(context.Background(), feed, false, domain.SystemActor())
	var missing *domain.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "mane", missing.Table)
	assert.ElementsMatch(t, []string{"RefSeq nuc", "MANE TYPE"}, missing.Columns)
}

func TestIngestResolvesTranscripts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed := &TranscriptFeed{
		ReferenceGenome: "GRCh38",
		ManeVersion:     "1.0",
		HGMDVersion:     "2026.1",
		Columns:         allReferenceColumns(),
		Data: ReferenceData{
			Mane: []domain.ManeRecord{
				{HGNCID: "HGNC:1100", Accession: "NM_007294.4", Type: domain.ManeSelect},
			},
		},
		Transcripts: []TranscriptInput{
			{GeneHGNC: "HGNC:1100", GeneSymbol: "BRCA1", Accession: "NM_007294.4"},
			{GeneHGNC: "HGNC:5", GeneSymbol: "XYZ", Accession: "NM_999.1"},
		},
	}

	summary, err := env.transcripts.Ingest(ctx, feed, false, domain.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Transcripts)
	require.Len(t, summary.Warnings, 1, "the unresolvable transcript warns")
	assert.Equal(t, "NM_999.1", summary.Warnings[0].Accession)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	for _, source := range []domain.TranscriptSource{
		domain.SourceManeSelect, domain.SourceManePlusClinical, domain.SourceHGMD,
	} {
		versions, err := tx.ListTranscriptReleaseVersions(ctx, source, "GRCh38")
		require.NoError(t, err)
		assert.Len(t, versions, 1, "one release per source per run")
	}

	gene, err := tx.GetGeneByHGNC(ctx, "HGNC:1100")
	require.NoError(t, err)
	_, err = tx.GetTranscript(ctx, gene.ID, "NM_007294.4", "GRCh38")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestIngestVersionGatePerSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed := &TranscriptFeed{
		ReferenceGenome: "GRCh38",
		ManeVersion:     "1.0",
		HGMDVersion:     "2026.1",
		Columns:         allReferenceColumns(),
	}

	_, err := env.transcripts.Ingest(ctx, feed, false, domain.SystemActor())
	require.NoError(t, err)

	_, err = env.transcripts.Ingest(ctx, feed, false, domain.SystemActor())
	assert.ErrorIs(t, err, domain.ErrStaleVersion)

	// A different genome build is gated independently.
	feed37 := *feed
	feed37.ReferenceGenome = "GRCh37"
	_, err = env.transcripts.Ingest(ctx, &feed37, false, domain.SystemActor())
	assert.NoError(t, err)
}

func TestIngestAbortsOnClinicalAmbiguity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The ambiguous gene backs a panel, so resolution must fail hard.
	_, _, err := env.panels.ImportPanel(ctx, &domain.PanelDefinition{
		ExternalID: "123", Name: "Panel", Version: "1.0",
		Genes: []domain.PanelGeneDefinition{{HGNCID: "HGNC:1", Confidence: "3"}},
	}, domain.SystemActor())
	require.NoError(t, err)

	feed := &TranscriptFeed{
		ReferenceGenome: "GRCh38",
		ManeVersion:     "1.0",
		HGMDVersion:     "2026.1",
		Columns:         allReferenceColumns(),
		Data: ReferenceData{
			Mane: []domain.ManeRecord{
				{HGNCID: "HGNC:1", Accession: "NM_1.2", Type: domain.ManeSelect},
				{HGNCID: "HGNC:2", Accession: "NM_1.3", Type: domain.ManeSelect},
			},
		},
		Transcripts: []TranscriptInput{{GeneHGNC: "HGNC:1", Accession: "NM_1.5"}},
	}

	_, err = env.transcripts.Ingest(ctx, feed, false, domain.SystemActor())
	var ambiguous *domain.AmbiguousClinicalDataError
	require.ErrorAs(t, err, &ambiguous)

	// Nothing committed: the releases created earlier in the run rolled back.
	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	versions, err := tx.ListTranscriptReleaseVersions(ctx, domain.SourceManeSelect, "GRCh38")
	require.NoError(t, err)
	assert.Empty(t, versions)
	require.NoError(t, tx.Commit())
}
