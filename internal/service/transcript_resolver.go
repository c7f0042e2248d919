package service

import (
	"strings"

	"github.com/panel-curation-server/internal/domain"
)

// ReferenceData holds the pre-parsed authoritative transcript tables for one
// ingestion run. Markname is keyed by the numeric HGNC suffix; Gene2Refseq by
// the HGMD-internal gene id.
type ReferenceData struct {
	Mane        []domain.ManeRecord
	Markname    map[string][]domain.MarknameEntry
	Gene2Refseq map[string][]domain.RefseqEntry
}

// PanelMembershipFunc reports whether a gene, identified by HGNC ID, is used
// by any panel. Ambiguity only becomes fatal when clinical reporting could be
// affected, which is exactly panel membership.
type PanelMembershipFunc func(hgncID string) (bool, error)

// Classify resolves one (gene, transcript accession) pair against the MANE
// and HGMD reference tables. MANE always takes precedence: once any MANE row
// shares the accession base, HGMD is not consulted, even when the MANE match
// cannot be resolved. The returned warning is non-nil for recoverable
// conditions; the returned error is fatal and must abort the ingestion.
func Classify(accession, geneHGNC string, data *ReferenceData, hasPanelGene PanelMembershipFunc) (domain.TranscriptClassification, *domain.ResolutionWarning, error) {
	var result domain.TranscriptClassification

	base := domain.AccessionBase(accession)

	var baseMatches []domain.ManeRecord
	for _, rec := range data.Mane {
		if domain.AccessionBase(rec.Accession) != base {
			continue
		}
		if rec.Accession == accession && rec.HGNCID == geneHGNC {
			setManeStatus(&result, rec.Type, domain.MatchStatus{
				Clinical:     domain.Bool(true),
				MatchBase:    domain.Bool(true),
				MatchVersion: domain.Bool(true),
			})
			return result, nil, nil
		}
		baseMatches = append(baseMatches, rec)
	}

	if len(baseMatches) > 0 {
		return classifyManeBase(accession, geneHGNC, baseMatches, hasPanelGene)
	}

	return classifyHGMD(accession, geneHGNC, data)
}

// classifyManeBase handles accessions whose base matches MANE rows without an
// exact version match. A base shared across multiple genes is ambiguous:
// fatal when any of those genes backs a panel, otherwise a warning with
// unknown classification. Either way HGMD is never consulted after a MANE
// base hit.
func classifyManeBase(accession, geneHGNC string, matches []domain.ManeRecord, hasPanelGene PanelMembershipFunc) (domain.TranscriptClassification, *domain.ResolutionWarning, error) {
	var result domain.TranscriptClassification

	genes := make(map[string]bool)
	for _, rec := range matches {
		genes[rec.HGNCID] = true
	}

	if len(genes) > 1 {
		affected := make([]string, 0, len(genes))
		for g := range genes {
			used, err := hasPanelGene(g)
			if err != nil {
				return result, nil, err
			}
			if used {
				affected = append(affected, g)
			}
		}
		if len(affected) > 0 {
			return result, nil, &domain.AmbiguousClinicalDataError{Accession: accession, Genes: affected}
		}
		return result, &domain.ResolutionWarning{
			Accession: accession,
			GeneHGNC:  geneHGNC,
			Reason:    "accession base matches multiple MANE genes, none with panel usage",
		}, nil
	}

	if !genes[geneHGNC] {
		return result, &domain.ResolutionWarning{
			Accession: accession,
			GeneHGNC:  geneHGNC,
			Reason:    "accession base matches a MANE record for a different gene",
		}, nil
	}

	for _, rec := range matches {
		setManeStatus(&result, rec.Type, domain.MatchStatus{
			Clinical:     domain.Bool(true),
			MatchBase:    domain.Bool(true),
			MatchVersion: domain.Bool(false),
		})
	}
	return result, nil, nil
}

// classifyHGMD is the fallback when no MANE row shares the accession base.
// Each lookup failure is a recoverable warning leaving the classification
// unknown.
func classifyHGMD(accession, geneHGNC string, data *ReferenceData) (domain.TranscriptClassification, *domain.ResolutionWarning, error) {
	var result domain.TranscriptClassification

	warn := func(reason string) (domain.TranscriptClassification, *domain.ResolutionWarning, error) {
		return result, &domain.ResolutionWarning{Accession: accession, GeneHGNC: geneHGNC, Reason: reason}, nil
	}

	entries, ok := data.Markname[domain.HGNCSuffix(geneHGNC)]
	if !ok || len(entries) == 0 {
		return warn("no HGMD markname entry for gene")
	}
	if len(entries) > 1 {
		return warn("multiple HGMD markname entries for gene")
	}
	if entries[0].GeneID == "" {
		return warn("HGMD markname entry has a blank gene id")
	}

	rows := data.Gene2Refseq[entries[0].GeneID]
	if len(rows) == 0 {
		return warn("no HGMD refseq rows for gene")
	}
	if len(rows) > 1 {
		return warn("multiple HGMD refseq rows for gene")
	}

	if rows[0].Core != domain.AccessionBase(accession) {
		return warn("HGMD refseq accession does not match transcript")
	}

	// HGMD matches at the base accession only; it never confirms a version.
	result.HGMD = domain.MatchStatus{
		Clinical:     domain.Bool(true),
		MatchBase:    domain.Bool(true),
		MatchVersion: domain.Bool(false),
	}
	return result, nil, nil
}

// setManeStatus routes a match to the Select or Plus Clinical slot. The
// upstream table mixes case in the type column.
func setManeStatus(result *domain.TranscriptClassification, t domain.ManeType, status domain.MatchStatus) {
	if strings.EqualFold(string(t), string(domain.ManePlusClinical)) {
		result.ManePlusClinical = status
	} else {
		result.ManeSelect = status
	}
}
