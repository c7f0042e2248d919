package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/storage"
)

const (
	// Only confidence level 3 ("green") genes are accepted as current panel
	// content.
	confidenceAccepted = "3"

	// Ad-hoc panel identity is the sorted gene list joined with this
	// delimiter, truncated to the storage column width.
	adHocDelimiter = "&"
	adHocNameMax   = 255
)

// PanelService resolves external panel identities, propagates version bumps
// to existing links, and synthesizes ad-hoc gene-list panels.
type PanelService struct {
	store storage.Store
	links *LinkService
	log   *logrus.Logger
}

// NewPanelService creates a new panel resolver service
func NewPanelService(store storage.Store, links *LinkService, logger *logrus.Logger) *PanelService {
	return &PanelService{
		store: store,
		links: links,
		log:   logger,
	}
}

// ImportPanel resolves a panel definition in its own transaction.
func (s *PanelService) ImportPanel(ctx context.Context, def *domain.PanelDefinition, actor domain.ActorRef) (*domain.Panel, bool, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	panel, created, err := s.ResolvePanel(ctx, tx, def, nil, actor)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing panel import: %w", err)
	}
	return panel, created, nil
}

// ImportSuperPanel resolves a super panel and its constituent panels in one
// transaction. Membership edges are written only when the super panel row
// itself is newly created; a child panel version bump alone does not rewrite
// existing memberships.
func (s *PanelService) ImportSuperPanel(ctx context.Context, def *domain.PanelDefinition, children []*domain.PanelDefinition, actor domain.ActorRef) (*domain.Panel, bool, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	childPanels := make([]*domain.Panel, 0, len(children))
	for _, child := range children {
		cp, _, err := s.ResolvePanel(ctx, tx, child, nil, actor)
		if err != nil {
			return nil, false, err
		}
		childPanels = append(childPanels, cp)
	}

	def.Super = true
	panel, created, err := s.ResolvePanel(ctx, tx, def, nil, actor)
	if err != nil {
		return nil, false, err
	}

	if created {
		for _, cp := range childPanels {
			if err := tx.CreateSuperPanelMembership(ctx, panel.ID, cp.ID); err != nil {
				return nil, false, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing super panel import: %w", err)
	}
	return panel, created, nil
}

// ResolvePanel maps a panel definition to a unique internal panel record with
// upsert semantics: an identical (external id, name, version) triple returns
// the existing row. On creation, currently-active links of sibling panels
// sharing the external id are retired pending review and a best-guess
// replacement link is provisionally created against the new panel.
//
// release is the current import's release when resolution happens during a
// directory import, or nil for standalone panel imports.
func (s *PanelService) ResolvePanel(ctx context.Context, tx storage.Tx, def *domain.PanelDefinition, release *domain.Release, actor domain.ActorRef) (*domain.Panel, bool, error) {
	sortable := domain.SortableVersion(def.Version)

	panel, err := tx.GetPanelByIdentity(ctx, def.ExternalID, def.Name, sortable)
	if err == nil {
		// Same panel, same version: still reconcile gene content so
		// confidence drops on pre-existing rows get flagged.
		if err := s.reconcileGenes(ctx, tx, panel, def.Genes, actor); err != nil {
			return nil, false, err
		}
		return panel, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	panel = &domain.Panel{
		ID:         uuid.New().String(),
		ExternalID: def.ExternalID,
		Name:       def.Name,
		Version:    sortable,
		Source:     def.Source,
		Super:      def.Super,
	}
	if err := tx.CreatePanel(ctx, panel); err != nil {
		return nil, false, err
	}

	s.log.WithFields(logrus.Fields{
		"panel_id":    panel.ID,
		"external_id": def.ExternalID,
		"name":        def.Name,
		"version":     def.Version,
	}).Info("Panel created")

	if err := s.reconcileGenes(ctx, tx, panel, def.Genes, actor); err != nil {
		return nil, false, err
	}

	if def.ExternalID != "" {
		if err := s.propagateVersionBump(ctx, tx, panel, release, actor); err != nil {
			return nil, false, err
		}
	}
	return panel, true, nil
}

// propagateVersionBump retires active links of older panels sharing the new
// panel's external id and provisionally re-links their indications to the new
// panel, attached to the most recent release that referenced the old link (or
// the current import's release when none exists).
func (s *PanelService) propagateVersionBump(ctx context.Context, tx storage.Tx, panel *domain.Panel, release *domain.Release, actor domain.ActorRef) error {
	siblings, err := tx.ListPanelsByExternalID(ctx, panel.ExternalID, panel.Super)
	if err != nil {
		return err
	}

	for _, sibling := range siblings {
		if sibling.ID == panel.ID {
			continue
		}
		links, err := tx.ListCurrentLinksByPanel(ctx, sibling.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			provenance := release
			if latest, err := tx.LatestReleaseForLink(ctx, link.ID); err == nil {
				provenance = latest
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			reason := fmt.Sprintf("panel %s superseded by version %s", panel.ExternalID, domain.HumanVersion(panel.Version))
			if err := s.links.FlagForReview(ctx, tx, link, actor, reason); err != nil {
				return err
			}
			if _, err := s.links.CreateProvisional(ctx, tx, link.IndicationID, panel.ID, provenance, actor); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileGenes upserts the panel's gene content. Only confidence level 3
// entries are accepted as active; a pre-existing row whose incoming
// confidence drops below 3 is flagged inactive and pending rather than
// dropped.
func (s *PanelService) reconcileGenes(ctx context.Context, tx storage.Tx, panel *domain.Panel, genes []domain.PanelGeneDefinition, actor domain.ActorRef) error {
	for _, gdef := range genes {
		gene, err := s.getOrCreateGene(ctx, tx, gdef.HGNCID, gdef.Symbol)
		if err != nil {
			return err
		}

		pg, err := tx.GetPanelGene(ctx, panel.ID, gene.ID)
		if errors.Is(err, domain.ErrNotFound) {
			if gdef.Confidence != confidenceAccepted {
				continue
			}
			pg = &domain.PanelGene{
				ID:            uuid.New().String(),
				PanelID:       panel.ID,
				GeneID:        gene.ID,
				Confidence:    gdef.Confidence,
				ModeOfInherit: gdef.ModeOfInherit,
				ModeOfPath:    gdef.ModeOfPath,
				Penetrance:    gdef.Penetrance,
				Justification: gdef.Justification,
				Active:        true,
			}
			if err := tx.CreatePanelGene(ctx, pg); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if gdef.Confidence != confidenceAccepted {
			if pg.Active {
				pg.Active = false
				pg.Pending = true
				pg.Confidence = gdef.Confidence
				if err := tx.UpdatePanelGene(ctx, pg); err != nil {
					return err
				}
				msg := fmt.Sprintf("gene %s dropped below confidence %s, flagged for review", gdef.HGNCID, confidenceAccepted)
				if err := s.auditPanelGene(ctx, tx, pg.ID, actor, msg); err != nil {
					return err
				}
			}
			continue
		}

		if pg.Justification != gdef.Justification {
			old := pg.Justification
			pg.Justification = gdef.Justification
			if err := tx.UpdatePanelGene(ctx, pg); err != nil {
				return err
			}
			msg := fmt.Sprintf("justification changed from %q to %q", old, gdef.Justification)
			if err := s.auditPanelGene(ctx, tx, pg.ID, actor, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildGeneListPanel synthesizes a panel from a raw gene list. Panel identity
// is a pure function of the gene-set contents, so re-submitting the same set
// is idempotent. A newly created gene-list panel wholesale replaces any other
// ad-hoc panel currently linked to the indication: the old links are retired
// pending review and a provisional link is created to the new panel.
func (s *PanelService) BuildGeneListPanel(ctx context.Context, tx storage.Tx, ci *domain.ClinicalIndication, release *domain.Release, geneIDs []string, actor domain.ActorRef) (*domain.Panel, bool, error) {
	if len(geneIDs) == 0 {
		return nil, false, fmt.Errorf("gene list panel requires at least one gene")
	}

	name := AdHocPanelName(geneIDs)

	panel, err := tx.GetAdHocPanelByName(ctx, name)
	created := false
	if errors.Is(err, domain.ErrNotFound) {
		panel = &domain.Panel{
			ID:     uuid.New().String(),
			Name:   name,
			Custom: true,
		}
		if err := tx.CreatePanel(ctx, panel); err != nil {
			return nil, false, err
		}
		created = true
	} else if err != nil {
		return nil, false, err
	}

	justification := fmt.Sprintf("gene list for %s", ci.Code)
	for _, hgnc := range geneIDs {
		gene, err := s.getOrCreateGene(ctx, tx, hgnc, "")
		if err != nil {
			return nil, false, err
		}
		pg, err := tx.GetPanelGene(ctx, panel.ID, gene.ID)
		if errors.Is(err, domain.ErrNotFound) {
			pg = &domain.PanelGene{
				ID:            uuid.New().String(),
				PanelID:       panel.ID,
				GeneID:        gene.ID,
				Confidence:    confidenceAccepted,
				Justification: justification,
				Active:        true,
			}
			if err := tx.CreatePanelGene(ctx, pg); err != nil {
				return nil, false, err
			}
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if pg.Justification != justification {
			old := pg.Justification
			pg.Justification = justification
			if err := tx.UpdatePanelGene(ctx, pg); err != nil {
				return nil, false, err
			}
			msg := fmt.Sprintf("justification changed from %q to %q", old, justification)
			if err := s.auditPanelGene(ctx, tx, pg.ID, actor, msg); err != nil {
				return nil, false, err
			}
		}
	}

	if created {
		if err := s.replaceAdHocLinks(ctx, tx, ci, panel, release, actor); err != nil {
			return nil, false, err
		}
	} else {
		// Same gene set as before: just confirm the existing link against
		// this release.
		if _, err := s.links.CreateDirect(ctx, tx, ci.ID, panel.ID, release, actor); err != nil {
			return nil, false, err
		}
	}

	return panel, created, nil
}

// replaceAdHocLinks retires every current link from the indication to any
// other ad-hoc panel and provisionally links the new one. An indication's
// gene-list panel is a singleton at any point in time.
func (s *PanelService) replaceAdHocLinks(ctx context.Context, tx storage.Tx, ci *domain.ClinicalIndication, panel *domain.Panel, release *domain.Release, actor domain.ActorRef) error {
	links, err := tx.ListCurrentLinksByIndication(ctx, ci.ID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.PanelID == panel.ID {
			continue
		}
		other, err := tx.GetPanelByID(ctx, link.PanelID)
		if err != nil {
			return err
		}
		if !other.Custom {
			continue
		}
		if err := s.links.FlagForReview(ctx, tx, link, actor, "gene list replaced by new gene set"); err != nil {
			return err
		}
	}

	_, err = s.links.CreateProvisional(ctx, tx, ci.ID, panel.ID, release, actor)
	return err
}

func (s *PanelService) getOrCreateGene(ctx context.Context, tx storage.Tx, hgncID, symbol string) (*domain.Gene, error) {
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

func (s *PanelService) auditPanelGene(ctx context.Context, tx storage.Tx, panelGeneID string, actor domain.ActorRef, message string) error {
	return tx.CreateAuditNote(ctx, &domain.AuditNote{
		ID:         uuid.New().String(),
		EntityType: domain.EntityPanelGene,
		EntityID:   panelGeneID,
		Actor:      actor.String(),
		Message:    message,
	})
}

// AdHocPanelName derives the identity of a gene-list panel: gene identifiers
// sorted lexicographically, joined and truncated to the storage field width.
func AdHocPanelName(geneIDs []string) string {
	sorted := make([]string, len(geneIDs))
	copy(sorted, geneIDs)
	sort.Strings(sorted)

	name := strings.Join(sorted, adHocDelimiter)
	if len(name) > adHocNameMax {
		name = name[:adHocNameMax]
	}
	return name
}
