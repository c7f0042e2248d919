// Package service implements the versioned-entity reconciliation engine:
// release import, panel identity resolution, link state transitions, the
// backward-deactivation sweep, and the transcript clinical-status resolver.
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

// LinkService drives the clinical indication link state machine. Every state
// change it makes is paired with exactly one audit note in the same
// transaction.
type LinkService struct {
	log *logrus.Logger
}

// NewLinkService creates a new link state machine service
func NewLinkService(logger *logrus.Logger) *LinkService {
	return &LinkService{log: logger}
}

// CreateDirect ensures an ACTIVE link between indication and panel, recording
// the release that produced or confirmed it. Re-importing the same release is
// idempotent: an audit note is written only when the link or the release link
// is newly created.
func (s *LinkService) CreateDirect(ctx context.Context, tx storage.Tx, indicationID, panelID string, release *domain.Release, actor domain.ActorRef) (*domain.Link, error) {
	link, created, err := s.getOrCreateLink(ctx, tx, indicationID, panelID, true, false)
	if err != nil {
		return nil, err
	}

	releaseLinked, err := s.attachRelease(ctx, tx, link, release)
	if err != nil {
		return nil, err
	}

	if created || releaseLinked {
		msg := fmt.Sprintf("link confirmed by release %s", release.Version)
		if created {
			msg = fmt.Sprintf("link created from release %s", release.Version)
		}
		if err := s.audit(ctx, tx, link.ID, actor, msg); err != nil {
			return nil, err
		}
	}
	return link, nil
}

// CreateProvisional ensures a link and forces it into the PROVISIONAL state,
// regardless of any prior state. Used for best-guess replacements after a
// panel version bump or an indication rename. Release may be nil when no
// provenance release is known.
func (s *LinkService) CreateProvisional(ctx context.Context, tx storage.Tx, indicationID, panelID string, release *domain.Release, actor domain.ActorRef) (*domain.Link, error) {
	link, created, err := s.getOrCreateLink(ctx, tx, indicationID, panelID, true, true)
	if err != nil {
		return nil, err
	}

	stateChanged := false
	if !created && link.State() != domain.LinkProvisional {
		if err := tx.UpdateLinkState(ctx, link.ID, true, true); err != nil {
			return nil, fmt.Errorf("forcing provisional state: %w", err)
		}
		link.Current = true
		link.Pending = true
		stateChanged = true
	}

	releaseLinked := false
	if release != nil {
		releaseLinked, err = s.attachRelease(ctx, tx, link, release)
		if err != nil {
			return nil, err
		}
	}

	if created || stateChanged || releaseLinked {
		if err := s.audit(ctx, tx, link.ID, actor, "best-guess link created automatically, awaiting review"); err != nil {
			return nil, err
		}
	}
	return link, nil
}

// FlagForReview transitions an ACTIVE or PROVISIONAL link to RETIRED_PENDING,
// recording the reason. Calling it on a link that is already retired is a
// no-op.
func (s *LinkService) FlagForReview(ctx context.Context, tx storage.Tx, link *domain.Link, actor domain.ActorRef, reason string) error {
	if !link.Current {
		return nil
	}

	if err := tx.UpdateLinkState(ctx, link.ID, false, true); err != nil {
		return fmt.Errorf("flagging link for review: %w", err)
	}
	link.Current = false
	link.Pending = true

	s.log.WithFields(logrus.Fields{
		"link_id": link.ID,
		"reason":  reason,
	}).Info("Link flagged for review")

	return s.audit(ctx, tx, link.ID, actor, fmt.Sprintf("flagged for review: %s", reason))
}

// getOrCreateLink fetches the link for (indication, panel) or creates it with
// the given initial flags.
func (s *LinkService) getOrCreateLink(ctx context.Context, tx storage.Tx, indicationID, panelID string, current, pending bool) (*domain.Link, bool, error) {
	link, err := tx.GetLink(ctx, indicationID, panelID)
	if err == nil {
		return link, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("getting link: %w", err)
	}

	link = &domain.Link{
		ID:           uuid.New().String(),
		IndicationID: indicationID,
		PanelID:      panelID,
		Current:      current,
		Pending:      pending,
	}
	if err := tx.CreateLink(ctx, link); err != nil {
		return nil, false, err
	}
	return link, true, nil
}

// attachRelease upserts the release link, reporting whether a new row was
// written.
func (s *LinkService) attachRelease(ctx context.Context, tx storage.Tx, link *domain.Link, release *domain.Release) (bool, error) {
	_, err := tx.GetReleaseLink(ctx, link.ID, release.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("getting release link: %w", err)
	}

	rl := &domain.ReleaseLink{
		ID:        uuid.New().String(),
		LinkID:    link.ID,
		ReleaseID: release.ID,
	}
	if err := tx.CreateReleaseLink(ctx, rl); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LinkService) audit(ctx context.Context, tx storage.Tx, linkID string, actor domain.ActorRef, message string) error {
	return tx.CreateAuditNote(ctx, &domain.AuditNote{
		ID:         uuid.New().String(),
		EntityType: domain.EntityLink,
		EntityID:   linkID,
		Actor:      actor.String(),
		Message:    message,
	})
}
