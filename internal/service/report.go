package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/storage"
)

// ReportService generates the curated output: every current, approved
// indication to panel mapping expanded to its active genes.
type ReportService struct {
	store storage.Store
	log   *logrus.Logger
}

// NewReportService creates a new report service
func NewReportService(store storage.Store, logger *logrus.Logger) *ReportService {
	return &ReportService{store: store, log: logger}
}

// GenerateReport reads a consistent snapshot of the curation state. Pending
// and retired links never appear; inactive panel genes are skipped.
func (s *ReportService) GenerateReport(ctx context.Context) ([]domain.ReportRow, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	links, err := tx.ListCurrentApprovedLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing approved links: %w", err)
	}

	rows := make([]domain.ReportRow, 0, len(links))
	for _, link := range links {
		ci, err := tx.GetIndicationByID(ctx, link.IndicationID)
		if err != nil {
			return nil, fmt.Errorf("resolving indication %s: %w", link.IndicationID, err)
		}
		panel, err := tx.GetPanelByID(ctx, link.PanelID)
		if err != nil {
			return nil, fmt.Errorf("resolving panel %s: %w", link.PanelID, err)
		}

		genes, err := tx.ListPanelGenes(ctx, panel.ID)
		if err != nil {
			return nil, err
		}
		for _, pg := range genes {
			if !pg.Active {
				continue
			}
			gene, err := tx.GetGeneByID(ctx, pg.GeneID)
			if err != nil {
				return nil, err
			}
			rows = append(rows, domain.ReportRow{
				IndicationCode: ci.Code,
				IndicationName: ci.Name,
				PanelName:      panel.Name,
				PanelVersion:   domain.HumanVersion(panel.Version),
				GeneHGNC:       gene.HGNCID,
				GeneSymbol:     gene.Symbol,
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"links": len(links),
		"rows":  len(rows),
	}).Info("Report generated")

	return rows, nil
}
