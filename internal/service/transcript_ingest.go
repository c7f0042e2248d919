package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/storage"
)

// Required columns per reference table, checked before any mutation.
var requiredReferenceColumns = map[string][]string{
	"mane":        {"HGNC ID", "RefSeq nuc", "MANE TYPE"},
	"markname":    {"gene_id"},
	"gene2refseq": {"refcore", "refversion"},
}

// TranscriptInput is one (gene, accession) pair to resolve.
type TranscriptInput struct {
	GeneHGNC   string `json:"gene_hgnc"`
	GeneSymbol string `json:"gene_symbol,omitempty"`
	Accession  string `json:"accession"`
}

// TranscriptFeed is a fully-parsed transcript ingestion run: the reference
// tables, their observed column sets, the source versions and the transcripts
// to resolve, all for a single reference genome build.
type TranscriptFeed struct {
	ReferenceGenome string              `json:"reference_genome"`
	ManeVersion     string              `json:"mane_version"`
	HGMDVersion     string              `json:"hgmd_version"`
	Columns         map[string][]string `json:"columns"`
	Data            ReferenceData       `json:"data"`
	Transcripts     []TranscriptInput   `json:"transcripts"`
}

// TranscriptImportSummary reports what a transcript ingestion changed.
type TranscriptImportSummary struct {
	ReferenceGenome string                     `json:"reference_genome"`
	Transcripts     int                        `json:"transcripts"`
	Warnings        []domain.ResolutionWarning `json:"warnings,omitempty"`
}

// TranscriptIngester resolves transcripts against MANE and HGMD and records
// one release per source per run. One run is one transaction; a fatal
// ambiguity rolls everything back.
type TranscriptIngester struct {
	store    storage.Store
	gate     *VersionGate
	versions *LatestVersionIndex
	log      *logrus.Logger
}

// NewTranscriptIngester creates a new transcript ingestion service
func NewTranscriptIngester(store storage.Store, gate *VersionGate, versions *LatestVersionIndex, logger *logrus.Logger) *TranscriptIngester {
	return &TranscriptIngester{
		store:    store,
		gate:     gate,
		versions: versions,
		log:      logger,
	}
}

// Ingest validates the feed, version-gates each source, resolves every
// transcript and writes one release link per (transcript, source).
func (s *TranscriptIngester) Ingest(ctx context.Context, feed *TranscriptFeed, force bool, actor domain.ActorRef) (*TranscriptImportSummary, error) {
	if err := validateReferenceColumns(feed.Columns); err != nil {
		return nil, err
	}
	if feed.ReferenceGenome == "" {
		return nil, fmt.Errorf("transcript feed requires a reference genome")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	releases := make(map[domain.TranscriptSource]*domain.TranscriptRelease, 3)
	for source, version := range map[domain.TranscriptSource]string{
		domain.SourceManeSelect:       feed.ManeVersion,
		domain.SourceManePlusClinical: feed.ManeVersion,
		domain.SourceHGMD:             feed.HGMDVersion,
	} {
		latest, err := s.versions.TranscriptLatest(ctx, tx, source, feed.ReferenceGenome)
		if err != nil {
			return nil, fmt.Errorf("resolving latest %s release: %w", source, err)
		}
		if err := s.gate.Validate(version, latest, force); err != nil {
			return nil, fmt.Errorf("source %s: %w", source, err)
		}

		release := &domain.TranscriptRelease{
			ID:              uuid.New().String(),
			Source:          source,
			Version:         version,
			ReferenceGenome: feed.ReferenceGenome,
		}
		if err := tx.CreateTranscriptRelease(ctx, release); err != nil {
			return nil, err
		}
		releases[source] = release
	}

	summary := &TranscriptImportSummary{ReferenceGenome: feed.ReferenceGenome}

	hasPanelGene := func(hgncID string) (bool, error) {
		return tx.GeneHasPanelMembership(ctx, hgncID)
	}

	for _, input := range feed.Transcripts {
		warning, err := s.ingestOne(ctx, tx, feed, &input, releases, hasPanelGene)
		if err != nil {
			return nil, err
		}
		if warning != nil {
			summary.Warnings = append(summary.Warnings, *warning)
		}
		summary.Transcripts++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transcript ingestion: %w", err)
	}
	for source := range releases {
		s.versions.InvalidateTranscript(source, feed.ReferenceGenome)
	}

	s.log.WithFields(logrus.Fields{
		"reference_genome": feed.ReferenceGenome,
		"transcripts":      summary.Transcripts,
		"warnings":         len(summary.Warnings),
	}).Info("Transcript ingestion committed")

	return summary, nil
}

func (s *TranscriptIngester) ingestOne(ctx context.Context, tx storage.Tx, feed *TranscriptFeed, input *TranscriptInput, releases map[domain.TranscriptSource]*domain.TranscriptRelease, hasPanelGene PanelMembershipFunc) (*domain.ResolutionWarning, error) {
	gene, err := s.getOrCreateGene(ctx, tx, input.GeneHGNC, input.GeneSymbol)
	if err != nil {
		return nil, err
	}

	transcript, err := tx.GetTranscript(ctx, gene.ID, input.Accession, feed.ReferenceGenome)
	if errors.Is(err, domain.ErrNotFound) {
		transcript = &domain.Transcript{
			ID:              uuid.New().String(),
			GeneID:          gene.ID,
			Accession:       input.Accession,
			ReferenceGenome: feed.ReferenceGenome,
		}
		if err := tx.CreateTranscript(ctx, transcript); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	classification, warning, err := Classify(input.Accession, input.GeneHGNC, &feed.Data, hasPanelGene)
	if err != nil {
		return nil, fmt.Errorf("resolving transcript %s: %w", input.Accession, err)
	}
	if warning != nil {
		s.log.WithFields(logrus.Fields{
			"accession": warning.Accession,
			"gene":      warning.GeneHGNC,
			"reason":    warning.Reason,
		}).Warn("Transcript resolution left unknown")
	}

	for source, status := range map[domain.TranscriptSource]domain.MatchStatus{
		domain.SourceManeSelect:       classification.ManeSelect,
		domain.SourceManePlusClinical: classification.ManePlusClinical,
		domain.SourceHGMD:             classification.HGMD,
	} {
		trl := &domain.TranscriptReleaseLink{
			ID:              uuid.New().String(),
			TranscriptID:    transcript.ID,
			ReleaseID:       releases[source].ID,
			MatchVersion:    status.MatchVersion,
			MatchBase:       status.MatchBase,
			DefaultClinical: status.Clinical,
		}
		if err := tx.CreateTranscriptReleaseLink(ctx, trl); err != nil {
			return nil, err
		}
	}
	return warning, nil
}

func (s *TranscriptIngester) getOrCreateGene(ctx context.Context, tx storage.Tx, hgncID, symbol string) (*domain.Gene, error) {
	gene, err := tx.GetGeneByHGNC(ctx, hgncID)
	if err == nil {
		return gene, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	gene = &domain.Gene{
		ID:     uuid.New().String(),
		HGNCID: hgncID,
		Symbol: symbol,
	}
	if err := tx.CreateGene(ctx, gene); err != nil {
		return nil, err
	}
	return gene, nil
}

// validateReferenceColumns rejects the run before any write when a reference
// table is missing required fields.
func validateReferenceColumns(columns map[string][]string) error {
	for table, required := range requiredReferenceColumns {
		present := make(map[string]bool, len(columns[table]))
		for _, c := range columns[table] {
			present[c] = true
		}
		var missing []string
		for _, c := range required {
			if !present[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return &domain.MissingColumnsError{Table: table, Columns: missing}
		}
	}
	return nil
}
