package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
)

func TestAdHocPanelName(t *testing.T) {
	assert.Equal(t, AdHocPanelName([]string{"HGNC:2", "HGNC:1"}), AdHocPanelName([]string{"HGNC:1", "HGNC:2"}))
	assert.Equal(t, "HGNC:1&HGNC:2", AdHocPanelName([]string{"HGNC:2", "HGNC:1"}))

	long := make([]string, 40)
	for i := range long {
		long[i] = "HGNC:1234567"
	}
	name := AdHocPanelName(long)
	assert.Len(t, name, 255)
	assert.True(t, strings.HasPrefix(name, "HGNC:1234567&"))
}

func TestImportPanelIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := &domain.PanelDefinition{
		ExternalID: "123",
		Name:       "Cancer panel",
		Version:    "1.0",
		Source:     "panelapp",
		Genes: []domain.PanelGeneDefinition{
			{HGNCID: "HGNC:1100", Symbol: "BRCA1", Confidence: "3", Justification: "expert review"},
		},
	}

	panel, created, err := env.panels.ImportPanel(ctx, def, domain.SystemActor())
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := env.panels.ImportPanel(ctx, def, domain.SystemActor())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, panel.ID, again.ID)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	genes, err := tx.ListPanelGenes(ctx, panel.ID)
	require.NoError(t, err)
	require.Len(t, genes, 1)
	assert.True(t, genes[0].Active)
	require.NoError(t, tx.Commit())
}

func TestLowConfidenceGenesAreNotAdded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	panel, _, err := env.panels.ImportPanel(ctx, &domain.PanelDefinition{
		ExternalID: "123", Name: "Cancer panel", Version: "1.0",
		Genes: []domain.PanelGeneDefinition{
			{HGNCID: "HGNC:1", Confidence: "3"},
			{HGNCID: "HGNC:2", Confidence: "2"},
			{HGNCID: "HGNC:3", Confidence: "1"},
		},
	}, domain.SystemActor())
	require.NoError(t, err)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	genes, err := tx.ListPanelGenes(ctx, panel.ID)
	require.NoError(t, err)
	assert.Len(t, genes, 1, "only green genes are accepted")
	require.NoError(t, tx.Commit())
}

func TestConfidenceDropFlagsGene(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := &domain.PanelDefinition{
		ExternalID: "123", Name: "Cancer panel", Version: "1.0",
		Genes: []domain.PanelGeneDefinition{{HGNCID: "HGNC:1100", Confidence: "3"}},
	}
	panel, _, err := env.panels.ImportPanel(ctx, def, domain.SystemActor())
	require.NoError(t, err)

	def.Genes[0].Confidence = "2"
	_, _, err = env.panels.ImportPanel(ctx, def, domain.SystemActor())
	require.NoError(t, err)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	genes, err := tx.ListPanelGenes(ctx, panel.ID)
	require.NoError(t, err)
	require.Len(t, genes, 1)
	assert.False(t, genes[0].Active, "dropped gene stays on the panel but inactive")
	assert.True(t, genes[0].Pending)
	assert.Equal(t, "2", genes[0].Confidence)

	notes, err := tx.ListAuditNotes(ctx, domain.EntityPanelGene, genes[0].ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "dropped below confidence")
	require.NoError(t, tx.Commit())
}

func TestVersionBumpPropagation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A directory import links an indication to a placeholder for panel 123.
	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("1.0", domain.IndicationRecord{
		Code: "R1", Name: "n", Panels: []domain.PanelReference{panelRef("123")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	// The panel source then delivers the real panel under the same id.
	newPanel, created, err := env.panels.ImportPanel(ctx, &domain.PanelDefinition{
		ExternalID: "123", Name: "Cancer panel", Version: "1.0",
		Genes: []domain.PanelGeneDefinition{{HGNCID: "HGNC:1100", Confidence: "3"}},
	}, domain.SystemActor())
	require.NoError(t, err)
	require.True(t, created)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ci, err := tx.GetIndication(ctx, "R1", "n")
	require.NoError(t, err)

	oldLinks, err := tx.ListPendingLinks(ctx)
	require.NoError(t, err)
	require.Len(t, oldLinks, 2, "old link retired, replacement provisional")

	newLink, err := tx.GetLink(ctx, ci.ID, newPanel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkProvisional, newLink.State())

	// Replacement carries the provenance of the release that made the old
	// link.
	provenance, err := tx.LatestReleaseForLink(ctx, newLink.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", provenance.Version)
	require.NoError(t, tx.Commit())

	// A later version bump moves the provisional link along again.
	v2, created, err := env.panels.ImportPanel(ctx, &domain.PanelDefinition{
		ExternalID: "123", Name: "Cancer panel", Version: "2.0",
		Genes: []domain.PanelGeneDefinition{{HGNCID: "HGNC:1100", Confidence: "3"}},
	}, domain.SystemActor())
	require.NoError(t, err)
	require.True(t, created)

	tx2, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	link, err := tx2.GetLink(ctx, ci.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkProvisional, link.State())

	prior, err := tx2.GetLink(ctx, ci.ID, newPanel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkRetiredPending, prior.State())
	require.NoError(t, tx2.Commit())
}

func TestSuperPanelMembershipOnlyOnCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	childA := &domain.PanelDefinition{ExternalID: "10", Name: "Child A", Version: "1.0"}
	childB := &domain.PanelDefinition{ExternalID: "11", Name: "Child B", Version: "1.0"}
	super := &domain.PanelDefinition{ExternalID: "900", Name: "Super", Version: "1.0", Super: true}

	sp, created, err := env.panels.ImportSuperPanel(ctx, super, []*domain.PanelDefinition{childA, childB}, domain.SystemActor())
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, sp.Super)

	// Re-importing the same super panel neither recreates it nor fails on
	// existing membership rows.
	again, created, err := env.panels.ImportSuperPanel(ctx, super, []*domain.PanelDefinition{childA, childB}, domain.SystemActor())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sp.ID, again.ID)
}
