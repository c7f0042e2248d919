package domain

import (
	"time"
)

// Core Enums and Types

// LinkState represents the review state of a clinical indication link,
// derived from its Current and Pending flags.
type LinkState string

const (
	LinkActive          LinkState = "ACTIVE"
	LinkProvisional     LinkState = "PROVISIONAL"
	LinkRetiredPending  LinkState = "RETIRED_PENDING"
	LinkRetiredApproved LinkState = "RETIRED_APPROVED"
)

// ManeType represents the MANE transcript annotation category
type ManeType string

const (
	ManeSelect       ManeType = "MANE SELECT"
	ManePlusClinical ManeType = "MANE PLUS CLINICAL"
)

// TranscriptSource identifies the authority a transcript release came from
type TranscriptSource string

const (
	SourceManeSelect       TranscriptSource = "MANE Select"
	SourceManePlusClinical TranscriptSource = "MANE Plus Clinical"
	SourceHGMD             TranscriptSource = "HGMD"
)

// Entity types referenced by audit notes
const (
	EntityClinicalIndication = "clinical_indication"
	EntityPanel              = "panel"
	EntityLink               = "link"
	EntityPanelGene          = "panel_gene"
	EntityTranscript         = "transcript"
)

// Core Entities

// ClinicalIndication represents a clinical test indication from the national
// test directory. A rename under the same business code creates a new row;
// the old row is never mutated.
type ClinicalIndication struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"` // business code, e.g. "R208"
	Name       string    `json:"name"`
	TestMethod string    `json:"test_method"`
	Pending    bool      `json:"pending"`
	CreatedAt  time.Time `json:"created_at"`
}

// Panel represents a gene panel. ExternalID is empty for ad-hoc gene-list
// panels; Version is stored in zero-padded sortable form.
type Panel struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id,omitempty"`
	Name          string    `json:"name"`
	Version       string    `json:"version,omitempty"`
	Source        string    `json:"source,omitempty"`
	Super         bool      `json:"super"`
	TestDirectory bool      `json:"test_directory"`
	Custom        bool      `json:"custom"`
	Pending       bool      `json:"pending"`
	CreatedAt     time.Time `json:"created_at"`
}

// Gene represents a gene identified by its HGNC ID.
type Gene struct {
	ID        string    `json:"id"`
	HGNCID    string    `json:"hgnc_id"`
	Symbol    string    `json:"symbol,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PanelGene joins a Panel to a Gene with curation metadata.
type PanelGene struct {
	ID            string    `json:"id"`
	PanelID       string    `json:"panel_id"`
	GeneID        string    `json:"gene_id"`
	Confidence    string    `json:"confidence"`
	ModeOfInherit string    `json:"mode_of_inheritance,omitempty"`
	ModeOfPath    string    `json:"mode_of_pathogenicity,omitempty"`
	Penetrance    string    `json:"penetrance,omitempty"`
	Justification string    `json:"justification,omitempty"`
	Active        bool      `json:"active"`
	Pending       bool      `json:"pending"`
	CreatedAt     time.Time `json:"created_at"`
}

// Link joins a ClinicalIndication to a Panel or SuperPanel. Current marks the
// live mapping; Pending marks it as awaiting curator review.
type Link struct {
	ID           string    `json:"id"`
	IndicationID string    `json:"indication_id"`
	PanelID      string    `json:"panel_id"`
	Current      bool      `json:"current"`
	Pending      bool      `json:"pending"`
	ConfigSource string    `json:"config_source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// State derives the review state from the Current/Pending flags.
func (l *Link) State() LinkState {
	switch {
	case l.Current && !l.Pending:
		return LinkActive
	case l.Current && l.Pending:
		return LinkProvisional
	case !l.Current && l.Pending:
		return LinkRetiredPending
	default:
		return LinkRetiredApproved
	}
}

// Release represents an immutable test directory release that links cite as
// provenance.
type Release struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	Source       string    `json:"source"`
	ConfigSource string    `json:"config_source,omitempty"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReleaseLink records which release caused or confirmed a Link.
type ReleaseLink struct {
	ID        string    `json:"id"`
	LinkID    string    `json:"link_id"`
	ReleaseID string    `json:"release_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditNote is an append-only record documenting a state change on an entity.
// Notes are never updated or deleted.
type AuditNote struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Actor      string    `json:"actor"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transcript belongs to exactly one gene and one reference genome build.
type Transcript struct {
	ID              string    `json:"id"`
	GeneID          string    `json:"gene_id"`
	Accession       string    `json:"accession"`
	ReferenceGenome string    `json:"reference_genome"`
	CreatedAt       time.Time `json:"created_at"`
}

// TranscriptRelease is a versioned snapshot of one transcript source for one
// reference genome build.
type TranscriptRelease struct {
	ID              string           `json:"id"`
	Source          TranscriptSource `json:"source"`
	Version         string           `json:"version"`
	ReferenceGenome string           `json:"reference_genome"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TranscriptReleaseLink records, per (transcript, release) pair, how the
// transcript accession matched and whether the release considers it the
// default clinical transcript. Nil means unknown.
type TranscriptReleaseLink struct {
	ID              string    `json:"id"`
	TranscriptID    string    `json:"transcript_id"`
	ReleaseID       string    `json:"release_id"`
	MatchVersion    *bool     `json:"match_version"`
	MatchBase       *bool     `json:"match_base"`
	DefaultClinical *bool     `json:"default_clinical"`
	CreatedAt       time.Time `json:"created_at"`
}

// Feed Wire Models

// ReleaseFeed is a fully-parsed test directory release handed to the import.
type ReleaseFeed struct {
	Version      string             `json:"version"`
	Source       string             `json:"source"`
	ConfigSource string             `json:"config_source,omitempty"`
	Date         time.Time          `json:"date"`
	Indications  []IndicationRecord `json:"indications"`
}

// IndicationRecord is one row of the test directory feed.
type IndicationRecord struct {
	Code       string           `json:"code"`
	Name       string           `json:"name"`
	TestMethod string           `json:"test_method"`
	Panels     []PanelReference `json:"panels"`
}

// PanelReference is either an external panel identifier or a single gene
// identifier for ad-hoc gene-list entries. Exactly one field is set.
type PanelReference struct {
	PanelID string `json:"panel_id,omitempty"`
	GeneID  string `json:"gene_id,omitempty"`
}

// PanelDefinition is a fully-parsed panel from the panel-definition source.
type PanelDefinition struct {
	ExternalID string                `json:"external_id"`
	Name       string                `json:"name"`
	Version    string                `json:"version"`
	Source     string                `json:"source"`
	Super      bool                  `json:"super"`
	Genes      []PanelGeneDefinition `json:"genes"`
}

// PanelGeneDefinition is one gene entry of a panel definition.
type PanelGeneDefinition struct {
	HGNCID        string `json:"hgnc_id"`
	Symbol        string `json:"symbol,omitempty"`
	Confidence    string `json:"confidence"`
	ModeOfInherit string `json:"mode_of_inheritance,omitempty"`
	ModeOfPath    string `json:"mode_of_pathogenicity,omitempty"`
	Penetrance    string `json:"penetrance,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// Transcript Reference Models

// ManeRecord is one pre-parsed row of the MANE transcript table.
type ManeRecord struct {
	HGNCID    string   `json:"hgnc_id"`
	Accession string   `json:"accession"`
	Type      ManeType `json:"mane_type"`
}

// MarknameEntry is one pre-parsed row of the HGMD markname table, keyed by the
// numeric HGNC suffix. GeneID may be blank in upstream dumps.
type MarknameEntry struct {
	GeneID string `json:"gene_id"`
}

// RefseqEntry is one pre-parsed row of the HGMD gene2refseq table. HGMD
// carries core accession and version in separate columns.
type RefseqEntry struct {
	Core    string `json:"core"`
	Version string `json:"version"`
}

// MatchStatus is the tri-state classification of one transcript against one
// source. Nil fields mean the source could not resolve the transcript.
type MatchStatus struct {
	Clinical     *bool `json:"clinical"`
	MatchBase    *bool `json:"match_base"`
	MatchVersion *bool `json:"match_version"`
}

// TranscriptClassification is the full result of resolving one (gene,
// transcript) pair against every authoritative source.
type TranscriptClassification struct {
	ManeSelect       MatchStatus `json:"mane_select"`
	ManePlusClinical MatchStatus `json:"mane_plus_clinical"`
	HGMD             MatchStatus `json:"hgmd"`
}

// ReportRow is one row of the curated output report: a current, approved
// indication to panel mapping expanded per gene.
type ReportRow struct {
	IndicationCode string `json:"indication_code"`
	IndicationName string `json:"indication_name"`
	PanelName      string `json:"panel_name"`
	PanelVersion   string `json:"panel_version,omitempty"`
	GeneHGNC       string `json:"gene_hgnc"`
	GeneSymbol     string `json:"gene_symbol,omitempty"`
}

// Bool returns a pointer to b, for tri-state fields.
func Bool(b bool) *bool {
	return &b
}
