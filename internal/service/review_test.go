package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-curation-server/internal/domain"
)

func seedLink(t *testing.T, env *testEnv, current, pending bool) *domain.Link {
	t.Helper()
	ctx := context.Background()

	tx, err := env.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.CreateIndication(ctx, &domain.ClinicalIndication{ID: "ci-1", Code: "R1", Name: "n"}))
	require.NoError(t, tx.CreatePanel(ctx, &domain.Panel{ID: "p-1", Name: "panel"}))

	link := &domain.Link{ID: "l-1", IndicationID: "ci-1", PanelID: "p-1", Current: current, Pending: pending}
	require.NoError(t, tx.CreateLink(ctx, link))
	require.NoError(t, tx.Commit())
	return link
}

func TestApproveProvisionalLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedLink(t, env, true, true)

	link, err := env.review.ApproveLink(ctx, "l-1", domain.NamedActor("curator"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkActive, link.State())

	notes, err := env.review.ListAuditNotes(ctx, domain.EntityLink, "l-1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "curator", notes[0].Actor)
	assert.Contains(t, notes[0].Message, "approved")
	assert.Contains(t, notes[0].Message, string(domain.LinkProvisional))
	assert.Contains(t, notes[0].Message, string(domain.LinkActive))
}

func TestApproveRetirement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedLink(t, env, false, true)

	link, err := env.review.ApproveLink(ctx, "l-1", domain.AuthenticatedActor("42"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkRetiredApproved, link.State())
}

func TestRevertLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Rejecting a proposed retirement reinstates the link.
	seedLink(t, env, false, true)
	link, err := env.review.RevertLink(ctx, "l-1", domain.NamedActor("curator"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkActive, link.State())
}

func TestRevertProvisionalRetires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedLink(t, env, true, true)
	link, err := env.review.RevertLink(ctx, "l-1", domain.NamedActor("curator"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkRetiredApproved, link.State())
}

func TestManualActivateDeactivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedLink(t, env, true, false)

	link, err := env.review.DeactivateLink(ctx, "l-1", domain.NamedActor("curator"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkRetiredPending, link.State(), "manual changes still need review")

	link, err = env.review.ActivateLink(ctx, "l-1", domain.NamedActor("curator"))
	require.NoError(t, err)
	assert.Equal(t, domain.LinkProvisional, link.State())

	pending, err := env.review.ListPendingLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReviewActionOnMissingLink(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.review.ApproveLink(context.Background(), "missing", domain.SystemActor())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
