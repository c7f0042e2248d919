package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleVersion indicates an import version that is not strictly newer
	// than the latest recorded release. Recoverable via force or a newer feed.
	ErrStaleVersion = errors.New("stale release version")
)

// StaleVersionError reports a rejected import version alongside the latest
// version already recorded.
type StaleVersionError struct {
	Version string
	Latest  string
}

// Error implements the error interface
func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("release version %q is not newer than recorded version %q", e.Version, e.Latest)
}

// Unwrap allows errors.Is(err, ErrStaleVersion)
func (e *StaleVersionError) Unwrap() error {
	return ErrStaleVersion
}

// AmbiguousClinicalDataError is fatal: a MANE base-accession ambiguity touches
// a gene used by a panel, so the transcript ingestion must abort rather than
// risk misclassifying a clinically-reported transcript.
type AmbiguousClinicalDataError struct {
	Accession string
	Genes     []string
}

// Error implements the error interface
func (e *AmbiguousClinicalDataError) Error() string {
	return fmt.Sprintf("transcript %q matches multiple MANE genes (%s) with panel usage; cannot resolve clinical status",
		e.Accession, strings.Join(e.Genes, ", "))
}

// MissingColumnsError is raised pre-flight when a reference table lacks
// required fields, before any mutation is attempted.
type MissingColumnsError struct {
	Table   string
	Columns []string
}

// Error implements the error interface
func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("reference table %q is missing required columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// ResolutionWarning is a non-fatal condition recorded while resolving a
// transcript; the ingestion proceeds with unknown classification.
type ResolutionWarning struct {
	Accession string `json:"accession"`
	GeneHGNC  string `json:"gene_hgnc"`
	Reason    string `json:"reason"`
}

func (w ResolutionWarning) String() string {
	return fmt.Sprintf("%s (%s): %s", w.Accession, w.GeneHGNC, w.Reason)
}
