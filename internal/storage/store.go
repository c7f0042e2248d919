// Package storage provides persistence for the curation engine behind a
// backend-neutral Store interface, with SQLite and PostgreSQL backends.
// Transactions span a whole import run: either every mutation of a release
// ingestion commits, including its audit notes, or none do.
package storage

import (
	"context"

	"github.com/panel-curation-server/internal/domain"
)

// Store opens transactions against the underlying database.
type Store interface {
	// Begin starts a transaction. Every mutation goes through a Tx.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the underlying database resources.
	Close() error
}

// Tx is a single transaction over the curation schema. Rollback after Commit
// is a no-op, so callers can always defer Rollback.
type Tx interface {
	Commit() error
	Rollback() error

	// Releases
	GetRelease(ctx context.Context, source, version string) (*domain.Release, error)
	CreateRelease(ctx context.Context, release *domain.Release) error
	ListReleaseVersions(ctx context.Context, source string) ([]string, error)
	LatestReleaseForLink(ctx context.Context, linkID string) (*domain.Release, error)

	// Clinical indications
	GetIndication(ctx context.Context, code, name string) (*domain.ClinicalIndication, error)
	GetIndicationByID(ctx context.Context, id string) (*domain.ClinicalIndication, error)
	CreateIndication(ctx context.Context, ci *domain.ClinicalIndication) error
	ListIndicationsByCode(ctx context.Context, code string) ([]*domain.ClinicalIndication, error)
	ListIndications(ctx context.Context) ([]*domain.ClinicalIndication, error)
	UpdateIndicationTestMethod(ctx context.Context, id, testMethod string, pending bool) error

	// Panels
	GetPanelByIdentity(ctx context.Context, externalID, name, version string) (*domain.Panel, error)
	GetAdHocPanelByName(ctx context.Context, name string) (*domain.Panel, error)
	GetPanelByID(ctx context.Context, id string) (*domain.Panel, error)
	CreatePanel(ctx context.Context, panel *domain.Panel) error
	ListPanelsByExternalID(ctx context.Context, externalID string, super bool) ([]*domain.Panel, error)
	CreateSuperPanelMembership(ctx context.Context, superPanelID, childPanelID string) error

	// Genes
	GetGeneByHGNC(ctx context.Context, hgncID string) (*domain.Gene, error)
	GetGeneByID(ctx context.Context, id string) (*domain.Gene, error)
	CreateGene(ctx context.Context, gene *domain.Gene) error

	// Panel genes
	GetPanelGene(ctx context.Context, panelID, geneID string) (*domain.PanelGene, error)
	CreatePanelGene(ctx context.Context, pg *domain.PanelGene) error
	UpdatePanelGene(ctx context.Context, pg *domain.PanelGene) error
	ListPanelGenes(ctx context.Context, panelID string) ([]*domain.PanelGene, error)
	GeneHasPanelMembership(ctx context.Context, hgncID string) (bool, error)

	// Links
	GetLink(ctx context.Context, indicationID, panelID string) (*domain.Link, error)
	GetLinkByID(ctx context.Context, id string) (*domain.Link, error)
	CreateLink(ctx context.Context, link *domain.Link) error
	UpdateLinkState(ctx context.Context, id string, current, pending bool) error
	ListCurrentLinksByIndication(ctx context.Context, indicationID string) ([]*domain.Link, error)
	ListCurrentLinksByPanel(ctx context.Context, panelID string) ([]*domain.Link, error)
	ListPendingLinks(ctx context.Context) ([]*domain.Link, error)
	ListCurrentApprovedLinks(ctx context.Context) ([]*domain.Link, error)

	// Release links
	GetReleaseLink(ctx context.Context, linkID, releaseID string) (*domain.ReleaseLink, error)
	CreateReleaseLink(ctx context.Context, rl *domain.ReleaseLink) error

	// Audit notes
	CreateAuditNote(ctx context.Context, note *domain.AuditNote) error
	ListAuditNotes(ctx context.Context, entityType, entityID string) ([]*domain.AuditNote, error)
	CountAuditNotes(ctx context.Context) (int64, error)

	// Transcripts
	GetTranscript(ctx context.Context, geneID, accession, referenceGenome string) (*domain.Transcript, error)
	CreateTranscript(ctx context.Context, t *domain.Transcript) error
	CreateTranscriptRelease(ctx context.Context, tr *domain.TranscriptRelease) error
	ListTranscriptReleaseVersions(ctx context.Context, source domain.TranscriptSource, referenceGenome string) ([]string, error)
	CreateTranscriptReleaseLink(ctx context.Context, trl *domain.TranscriptReleaseLink) error
}
