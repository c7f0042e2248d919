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

// ImportSummary reports what a release import changed.
type ImportSummary struct {
	ReleaseID    string `json:"release_id"`
	Version      string `json:"version"`
	Indications  int    `json:"indications"`
	LinksFlagged int    `json:"links_flagged"`
}

// Reconciler ingests test directory releases. One import is one transaction:
// the version gate, every indication upsert, every link transition and the
// backward-deactivation sweep commit together or not at all.
type Reconciler struct {
	store    storage.Store
	gate     *VersionGate
	versions *LatestVersionIndex
	panels   *PanelService
	links    *LinkService
	log      *logrus.Logger
}

// NewReconciler creates a new release reconciler
func NewReconciler(store storage.Store, gate *VersionGate, versions *LatestVersionIndex, panels *PanelService, links *LinkService, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		gate:     gate,
		versions: versions,
		panels:   panels,
		links:    links,
		log:      logger,
	}
}

// ImportRelease reconciles a parsed test directory release against the
// current curation state. Re-importing the same feed after a successful run
// with force set changes nothing but the release row.
func (r *Reconciler) ImportRelease(ctx context.Context, feed *domain.ReleaseFeed, force bool, actor domain.ActorRef) (*ImportSummary, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	latest, err := r.versions.DirectoryLatest(ctx, tx, feed.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving latest release: %w", err)
	}
	if err := r.gate.Validate(feed.Version, latest, force); err != nil {
		return nil, err
	}

	// A forced re-import of an already recorded version reuses the release
	// row, so re-running the same feed cannot grow the ledger.
	release, err := tx.GetRelease(ctx, feed.Source, feed.Version)
	if errors.Is(err, domain.ErrNotFound) {
		release = &domain.Release{
			ID:           uuid.New().String(),
			Version:      feed.Version,
			Source:       feed.Source,
			ConfigSource: feed.ConfigSource,
			Date:         feed.Date,
		}
		if err := tx.CreateRelease(ctx, release); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("resolving release row: %w", err)
	}

	summary := &ImportSummary{ReleaseID: release.ID, Version: feed.Version}

	seenCodes := make(map[string]bool, len(feed.Indications))
	for i := range feed.Indications {
		record := &feed.Indications[i]
		seenCodes[record.Code] = true
		if err := r.reconcileIndication(ctx, tx, record, release, actor, summary); err != nil {
			return nil, fmt.Errorf("reconciling indication %s: %w", record.Code, err)
		}
		summary.Indications++
	}

	if err := r.sweepAbsentIndications(ctx, tx, feed, seenCodes, actor, summary); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing release import: %w", err)
	}
	r.versions.InvalidateDirectory(feed.Source)

	r.log.WithFields(logrus.Fields{
		"release_id":    release.ID,
		"version":       feed.Version,
		"indications":   summary.Indications,
		"links_flagged": summary.LinksFlagged,
	}).Info("Release import committed")

	return summary, nil
}

func (r *Reconciler) reconcileIndication(ctx context.Context, tx storage.Tx, record *domain.IndicationRecord, release *domain.Release, actor domain.ActorRef, summary *ImportSummary) error {
	ci, created, err := r.getOrCreateIndication(ctx, tx, record)
	if err != nil {
		return err
	}

	if created {
		if err := r.propagateRename(ctx, tx, ci, release, actor, summary); err != nil {
			return err
		}
	}

	if ci.TestMethod != record.TestMethod {
		old := ci.TestMethod
		if err := tx.UpdateIndicationTestMethod(ctx, ci.ID, record.TestMethod, true); err != nil {
			return err
		}
		ci.TestMethod = record.TestMethod
		ci.Pending = true
		msg := fmt.Sprintf("test method changed from %q to %q", old, record.TestMethod)
		if err := r.auditIndication(ctx, tx, ci.ID, actor, msg); err != nil {
			return err
		}
	}

	referenced, err := r.linkReferencedPanels(ctx, tx, ci, record, release, actor)
	if err != nil {
		return err
	}

	return r.retireDroppedPanels(ctx, tx, ci, referenced, release, actor, summary)
}

// getOrCreateIndication resolves the (code, name) identity. A rename creates
// a fresh row; the previous row stays untouched as history.
func (r *Reconciler) getOrCreateIndication(ctx context.Context, tx storage.Tx, record *domain.IndicationRecord) (*domain.ClinicalIndication, bool, error) {
	ci, err := tx.GetIndication(ctx, record.Code, record.Name)
	if err == nil {
		return ci, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	ci = &domain.ClinicalIndication{
		ID:         uuid.New().String(),
		Code:       record.Code,
		Name:       record.Name,
		TestMethod: record.TestMethod,
	}
	if err := tx.CreateIndication(ctx, ci); err != nil {
		return nil, false, err
	}
	r.log.WithFields(logrus.Fields{
		"indication_id": ci.ID,
		"code":          ci.Code,
	}).Info("Clinical indication created")
	return ci, true, nil
}

// propagateRename handles a code reappearing under a new name: every current
// link of an older same-code row is retired pending review and provisionally
// re-created against the renamed indication.
func (r *Reconciler) propagateRename(ctx context.Context, tx storage.Tx, ci *domain.ClinicalIndication, release *domain.Release, actor domain.ActorRef, summary *ImportSummary) error {
	siblings, err := tx.ListIndicationsByCode(ctx, ci.Code)
	if err != nil {
		return err
	}
	for _, old := range siblings {
		if old.ID == ci.ID {
			continue
		}
		links, err := tx.ListCurrentLinksByIndication(ctx, old.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			reason := fmt.Sprintf("indication %s renamed to %q", ci.Code, ci.Name)
			if err := r.links.FlagForReview(ctx, tx, link, actor, reason); err != nil {
				return err
			}
			summary.LinksFlagged++
			if _, err := r.links.CreateProvisional(ctx, tx, ci.ID, link.PanelID, release, actor); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkReferencedPanels links the indication to every panel the feed row
// references and returns the set of external panel ids seen, for the
// per-indication dropped-panel check.
func (r *Reconciler) linkReferencedPanels(ctx context.Context, tx storage.Tx, ci *domain.ClinicalIndication, record *domain.IndicationRecord, release *domain.Release, actor domain.ActorRef) (map[string]bool, error) {
	referenced := make(map[string]bool)
	var geneIDs []string

	for _, ref := range record.Panels {
		if ref.GeneID != "" {
			geneIDs = append(geneIDs, ref.GeneID)
			continue
		}

		panel, err := r.resolveExternalPanel(ctx, tx, ref.PanelID, actor)
		if err != nil {
			return nil, err
		}
		referenced[panel.ExternalID] = true
		if _, err := r.links.CreateDirect(ctx, tx, ci.ID, panel.ID, release, actor); err != nil {
			return nil, err
		}
	}

	if len(geneIDs) > 0 {
		// Gene references collapse into one ad-hoc panel; the builder owns
		// all link handling for it.
		if _, _, err := r.panels.BuildGeneListPanel(ctx, tx, ci, release, geneIDs, actor); err != nil {
			return nil, err
		}
	}
	return referenced, nil
}

// resolveExternalPanel finds the highest-version panel for an external id, or
// creates a pending placeholder when the panel source has not delivered it
// yet.
func (r *Reconciler) resolveExternalPanel(ctx context.Context, tx storage.Tx, externalID string, actor domain.ActorRef) (*domain.Panel, error) {
	var best *domain.Panel
	for _, super := range []bool{false, true} {
		panels, err := tx.ListPanelsByExternalID(ctx, externalID, super)
		if err != nil {
			return nil, err
		}
		for _, p := range panels {
			if best == nil || domain.CompareVersions(domain.HumanVersion(p.Version), domain.HumanVersion(best.Version)) > 0 {
				best = p
			}
		}
	}
	if best != nil {
		return best, nil
	}

	stub := &domain.Panel{
		ID:            uuid.New().String(),
		ExternalID:    externalID,
		Name:          fmt.Sprintf("placeholder for panel %s", externalID),
		TestDirectory: true,
		Pending:       true,
	}
	if err := tx.CreatePanel(ctx, stub); err != nil {
		return nil, err
	}
	if err := tx.CreateAuditNote(ctx, &domain.AuditNote{
		ID:         uuid.New().String(),
		EntityType: domain.EntityPanel,
		EntityID:   stub.ID,
		Actor:      actor.String(),
		Message:    fmt.Sprintf("placeholder created for unresolved panel %s, awaiting panel source", externalID),
	}); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"panel_id":    stub.ID,
		"external_id": externalID,
	}).Warn("Created placeholder for unresolved panel reference")
	return stub, nil
}

// retireDroppedPanels flags current links to externally-sourced panels the
// feed row no longer references. Ad-hoc panels are managed by the gene-list
// builder and are left alone here.
func (r *Reconciler) retireDroppedPanels(ctx context.Context, tx storage.Tx, ci *domain.ClinicalIndication, referenced map[string]bool, release *domain.Release, actor domain.ActorRef, summary *ImportSummary) error {
	links, err := tx.ListCurrentLinksByIndication(ctx, ci.ID)
	if err != nil {
		return err
	}
	for _, link := range links {
		panel, err := tx.GetPanelByID(ctx, link.PanelID)
		if err != nil {
			return err
		}
		if panel.Custom || panel.ExternalID == "" || referenced[panel.ExternalID] {
			continue
		}
		reason := fmt.Sprintf("panel %s no longer referenced by release %s", panel.ExternalID, release.Version)
		if err := r.links.FlagForReview(ctx, tx, link, actor, reason); err != nil {
			return err
		}
		summary.LinksFlagged++
	}
	return nil
}

// sweepAbsentIndications is the backward-deactivation sweep: every current
// link of an indication whose code is absent from the feed is retired pending
// review.
func (r *Reconciler) sweepAbsentIndications(ctx context.Context, tx storage.Tx, feed *domain.ReleaseFeed, seenCodes map[string]bool, actor domain.ActorRef, summary *ImportSummary) error {
	all, err := tx.ListIndications(ctx)
	if err != nil {
		return err
	}
	for _, ci := range all {
		if seenCodes[ci.Code] {
			continue
		}
		links, err := tx.ListCurrentLinksByIndication(ctx, ci.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			reason := fmt.Sprintf("indication %s not found in release %s", ci.Code, feed.Version)
			if err := r.links.FlagForReview(ctx, tx, link, actor, reason); err != nil {
				return err
			}
			summary.LinksFlagged++
		}
	}
	return nil
}

func (r *Reconciler) auditIndication(ctx context.Context, tx storage.Tx, indicationID string, actor domain.ActorRef, message string) error {
	return tx.CreateAuditNote(ctx, &domain.AuditNote{
		ID:         uuid.New().String(),
		EntityType: domain.EntityClinicalIndication,
		EntityID:   indicationID,
		Actor:      actor.String(),
		Message:    message,
	})
}
