package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
)

func TestImportCreatesIndicationAndPlaceholderPanel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed := directoryFeed("1.0", domain.IndicationRecord{
		Code: "R208", Name: "Inherited breast cancer", TestMethod: "WGS",
		Panels: []domain.PanelReference{panelRef("123")},
	})

	summary, err := env.reconciler.ImportRelease(ctx, feed, false, domain.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indications)
	assert.Equal(t, 0, summary.LinksFlagged)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ci, err := tx.GetIndication(ctx, "R208", "Inherited breast cancer")
	require.NoError(t, err)
	assert.False(t, ci.Pending)

	panels, err := tx.ListPanelsByExternalID(ctx, "123", false)
	require.NoError(t, err)
	require.Len(t, panels, 1)
	assert.True(t, panels[0].Pending, "unresolved panel reference should be a pending placeholder")
	assert.True(t, panels[0].TestDirectory)

	link, err := tx.GetLink(ctx, ci.ID, panels[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkActive, link.State())

	provenance, err := tx.LatestReleaseForLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", provenance.Version)
	require.NoError(t, tx.Commit())
}

func TestImportRejectsStaleVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record := domain.IndicationRecord{
		Code: "R1", Name: "n", Panels: []domain.PanelReference{panelRef("100")},
	}

	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("2.0", record), false, domain.SystemActor())
	require.NoError(t, err)

	_, err = env.reconciler.ImportRelease(ctx, directoryFeed("2.0", record), false, domain.SystemActor())
	assert.ErrorIs(t, err, domain.ErrStaleVersion)

	_, err = env.reconciler.ImportRelease(ctx, directoryFeed("1.0", record), false, domain.SystemActor())
	assert.ErrorIs(t, err, domain.ErrStaleVersion)

	before := countAudit(t, env)

	// Force re-runs the import; the established link stays active and the
	// ledger does not grow.
	summary, err := env.reconciler.ImportRelease(ctx, directoryFeed("2.0", record), true, domain.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.LinksFlagged)
	assert.Equal(t, before, countAudit(t, env), "re-importing the same release must not add audit notes")

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	approved, err := tx.ListCurrentApprovedLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
	require.NoError(t, tx.Commit())
}

func TestIndicationRenamePropagation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("1.0", domain.IndicationRecord{
		Code: "R1", Name: "Old name", Panels: []domain.PanelReference{panelRef("100")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	summary, err := env.reconciler.ImportRelease(ctx, directoryFeed("2.0", domain.IndicationRecord{
		Code: "R1", Name: "New name", Panels: []domain.PanelReference{panelRef("100")},
	}), false, domain.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.LinksFlagged)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	oldCI, err := tx.GetIndication(ctx, "R1", "Old name")
	require.NoError(t, err)
	newCI, err := tx.GetIndication(ctx, "R1", "New name")
	require.NoError(t, err)
	assert.NotEqual(t, oldCI.ID, newCI.ID, "rename creates a new row")

	panels, err := tx.ListPanelsByExternalID(ctx, "100", false)
	require.NoError(t, err)
	require.Len(t, panels, 1)

	oldLink, err := tx.GetLink(ctx, oldCI.ID, panels[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkRetiredPending, oldLink.State())

	newLink, err := tx.GetLink(ctx, newCI.ID, panels[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkProvisional, newLink.State(), "replacement link awaits review")
	require.NoError(t, tx.Commit())
}

func TestBackwardDeactivationSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("1.0", domain.IndicationRecord{
		Code: "R1", Name: "first", Panels: []domain.PanelReference{panelRef("100")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	// R1 disappears from the next release.
	summary, err := env.reconciler.ImportRelease(ctx, directoryFeed("2.0", domain.IndicationRecord{
		Code: "R2", Name: "second", Panels: []domain.PanelReference{panelRef("200")},
	}), false, domain.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.LinksFlagged)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	r1, err := tx.GetIndication(ctx, "R1", "first")
	require.NoError(t, err)
	r1Links, err := tx.ListPendingLinks(ctx)
	require.NoError(t, err)
	require.Len(t, r1Links, 1)
	assert.Equal(t, r1.ID, r1Links[0].IndicationID)
	assert.Equal(t, domain.LinkRetiredPending, r1Links[0].State())

	notes, err := tx.ListAuditNotes(ctx, domain.EntityLink, r1Links[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[len(notes)-1].Message, "not found")
	require.NoError(t, tx.Commit())
}

func TestTestMethodChangeIsFlagged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("1.0", domain.IndicationRecord{
		Code: "R1", Name: "n", TestMethod: "WGS",
		Panels: []domain.PanelReference{panelRef("100")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	_, err = env.reconciler.ImportRelease(ctx, directoryFeed("2.0", domain.IndicationRecord{
		Code: "R1", Name: "n", TestMethod: "Small panel",
		Panels: []domain.PanelReference{panelRef("100")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ci, err := tx.GetIndication(ctx, "R1", "n")
	require.NoError(t, err)
	assert.Equal(t, "Small panel", ci.TestMethod)
	assert.True(t, ci.Pending)

	notes, err := tx.ListAuditNotes(ctx, domain.EntityClinicalIndication, ci.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, `"WGS"`)
	assert.Contains(t, notes[0].Message, `"Small panel"`)
	require.NoError(t, tx.Commit())
}

func TestGeneListIndication(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("1.0", domain.IndicationRecord{
		Code: "R1", Name: "n",
		Panels: []domain.PanelReference{geneRef("HGNC:2"), geneRef("HGNC:1")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	// Identity is order-insensitive.
	panel, err := tx.GetAdHocPanelByName(ctx, "HGNC:1&HGNC:2")
	require.NoError(t, err)
	assert.True(t, panel.Custom)

	genes, err := tx.ListPanelGenes(ctx, panel.ID)
	require.NoError(t, err)
	assert.Len(t, genes, 2)
	for _, pg := range genes {
		assert.True(t, pg.Active)
		assert.Equal(t, "3", pg.Confidence)
	}

	ci, err := tx.GetIndication(ctx, "R1", "n")
	require.NoError(t, err)
	link, err := tx.GetLink(ctx, ci.ID, panel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkProvisional, link.State())
	require.NoError(t, tx.Commit())

	// Re-importing the same gene set reuses the panel.
	_, err = env.reconciler.ImportRelease(ctx, directoryFeed("2.0", domain.IndicationRecord{
		Code: "R1", Name: "n",
		Panels: []domain.PanelReference{geneRef("HGNC:1"), geneRef("HGNC:2")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	tx2, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	again, err := tx2.GetAdHocPanelByName(ctx, "HGNC:1&HGNC:2")
	require.NoError(t, err)
	assert.Equal(t, panel.ID, again.ID)
	require.NoError(t, tx2.Commit())
}

func TestGeneListReplacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reconciler.ImportRelease(ctx, directoryFeed("1.0", domain.IndicationRecord{
		Code: "R1", Name: "n",
		Panels: []domain.PanelReference{geneRef("HGNC:1")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	// The gene set changes: the old ad-hoc panel's link is retired and a new
	// provisional link replaces it.
	_, err = env.reconciler.ImportRelease(ctx, directoryFeed("2.0", domain.IndicationRecord{
		Code: "R1", Name: "n",
		Panels: []domain.PanelReference{geneRef("HGNC:1"), geneRef("HGNC:3")},
	}), false, domain.SystemActor())
	require.NoError(t, err)

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ci, err := tx.GetIndication(ctx, "R1", "n")
	require.NoError(t, err)

	oldPanel, err := tx.GetAdHocPanelByName(ctx, "HGNC:1")
	require.NoError(t, err)
	oldLink, err := tx.GetLink(ctx, ci.ID, oldPanel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkRetiredPending, oldLink.State())

	newPanel, err := tx.GetAdHocPanelByName(ctx, "HGNC:1&HGNC:3")
	require.NoError(t, err)
	newLink, err := tx.GetLink(ctx, ci.ID, newPanel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkProvisional, newLink.State())
	require.NoError(t, tx.Commit())
}
