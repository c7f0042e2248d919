package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/storage"
)

// ReviewService exposes the curator-facing review actions. Each action runs
// in its own small transaction and writes exactly one audit note.
type ReviewService struct {
	store storage.Store
	log   *logrus.Logger
}

// NewReviewService creates a new review service
func NewReviewService(store storage.Store, logger *logrus.Logger) *ReviewService {
	return &ReviewService{store: store, log: logger}
}

// ApproveLink confirms the link's current state, clearing the pending flag.
// PROVISIONAL becomes ACTIVE; RETIRED_PENDING becomes RETIRED_APPROVED.
func (s *ReviewService) ApproveLink(ctx context.Context, linkID string, actor domain.ActorRef) (*domain.Link, error) {
	return s.transition(ctx, linkID, actor, "approved", func(link *domain.Link) (bool, bool) {
		return link.Current, false
	})
}

// RevertLink rejects the pending state, flipping the current flag back and
// clearing pending. A PROVISIONAL link is retired; a RETIRED_PENDING link is
// reinstated as ACTIVE.
func (s *ReviewService) RevertLink(ctx context.Context, linkID string, actor domain.ActorRef) (*domain.Link, error) {
	return s.transition(ctx, linkID, actor, "reverted", func(link *domain.Link) (bool, bool) {
		return !link.Current, false
	})
}

// ActivateLink manually turns a link on, subject to review.
func (s *ReviewService) ActivateLink(ctx context.Context, linkID string, actor domain.ActorRef) (*domain.Link, error) {
	return s.transition(ctx, linkID, actor, "manually activated", func(*domain.Link) (bool, bool) {
		return true, true
	})
}

// DeactivateLink manually turns a link off, subject to review.
func (s *ReviewService) DeactivateLink(ctx context.Context, linkID string, actor domain.ActorRef) (*domain.Link, error) {
	return s.transition(ctx, linkID, actor, "manually deactivated", func(*domain.Link) (bool, bool) {
		return false, true
	})
}

func (s *ReviewService) transition(ctx context.Context, linkID string, actor domain.ActorRef, action string, next func(*domain.Link) (current, pending bool)) (*domain.Link, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	link, err := tx.GetLinkByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("getting link %s: %w", linkID, err)
	}

	from := link.State()
	current, pending := next(link)
	if err := tx.UpdateLinkState(ctx, link.ID, current, pending); err != nil {
		return nil, err
	}
	link.Current = current
	link.Pending = pending

	note := &domain.AuditNote{
		ID:         uuid.New().String(),
		EntityType: domain.EntityLink,
		EntityID:   link.ID,
		Actor:      actor.String(),
		Message:    fmt.Sprintf("%s: %s -> %s", action, from, link.State()),
	}
	if err := tx.CreateAuditNote(ctx, note); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing review action: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"link_id": link.ID,
		"action":  action,
		"from":    from,
		"to":      link.State(),
		"actor":   actor.String(),
	}).Info("Review action applied")

	return link, nil
}

// ListPendingLinks returns every link awaiting curator review.
func (s *ReviewService) ListPendingLinks(ctx context.Context) ([]*domain.Link, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	links, err := tx.ListPendingLinks(ctx)
	if err != nil {
		return nil, err
	}
	return links, tx.Commit()
}

// ListAuditNotes returns the audit trail of one entity, oldest first.
func (s *ReviewService) ListAuditNotes(ctx context.Context, entityType, entityID string) ([]*domain.AuditNote, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	notes, err := tx.ListAuditNotes(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return notes, tx.Commit()
}
