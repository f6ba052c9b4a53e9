package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/internal/pkg/application/templefinder"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/metrics"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/temple-finder/pkg/types"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrNotAllowed     = errors.New("only the author or an admin may remove a review")
)

type Reviews interface {
	Add(ctx context.Context, templeID, userID string, review types.Review) (types.Review, error)
	ListByTemple(ctx context.Context, templeID string, offset, limit int) (types.Collection[types.Review], error)
	ListByUser(ctx context.Context, userID string) ([]types.Review, error)
	Delete(ctx context.Context, reviewID, userID, role string) error
}

type reviews struct {
	reviews   database.ReviewRepository
	temples   templefinder.TempleFinder
	messenger messaging.MsgContext
	metrics   *metrics.Metrics
}

func New(r database.ReviewRepository, temples templefinder.TempleFinder, messenger messaging.MsgContext, m *metrics.Metrics) Reviews {
	return &reviews{
		reviews:   r,
		temples:   temples,
		messenger: messenger,
		metrics:   m,
	}
}

func (s *reviews) Add(ctx context.Context, templeID, userID string, review types.Review) (types.Review, error) {
	review.Comment = strings.TrimSpace(review.Comment)

	if err := review.Validate(); err != nil {
		return types.Review{}, err
	}

	if _, err := s.temples.GetByID(ctx, templeID); err != nil {
		return types.Review{}, err
	}

	review.ID = ""
	review.TempleID = templeID
	review.UserID = userID

	added, err := s.reviews.Add(ctx, review)
	if err != nil {
		return types.Review{}, err
	}

	score, err := s.recompute(ctx, templeID)
	if err != nil {
		return types.Review{}, err
	}

	s.metrics.ReviewAdded()

	log := logging.GetFromContext(ctx)
	log.Info(fmt.Sprintf("review added, rating is now %.2f", score), "templeID", templeID, "reviewID", added.ID)

	msg := &types.ReviewAdded{
		ReviewID:    added.ID,
		TempleID:    templeID,
		Rating:      added.Rating,
		TempleScore: score,
		Timestamp:   added.CreatedAt,
	}
	if err := s.messenger.PublishOnTopic(ctx, msg); err != nil {
		s.metrics.PublishFailed(msg.TopicName())
		log.Error("failed to publish message", "topic", msg.TopicName(), "err", err.Error())
	}

	return added, nil
}

func (s *reviews) recompute(ctx context.Context, templeID string) (float64, error) {
	stats, err := s.reviews.RefreshTempleRating(ctx, templeID)
	if err != nil {
		if errors.Is(err, database.ErrTempleNotFound) {
			return 0, templefinder.ErrTempleNotFound
		}
		return 0, err
	}

	return stats.Average, nil
}

func (s *reviews) ListByTemple(ctx context.Context, templeID string, offset, limit int) (types.Collection[types.Review], error) {
	if _, err := s.temples.GetByID(ctx, templeID); err != nil {
		return types.Collection[types.Review]{}, err
	}

	if limit <= 0 {
		limit = templefinder.DefaultPageSize
	}
	limit = min(limit, templefinder.MaxPageSize)

	return s.reviews.ByTemple(ctx, templeID, max(offset, 0), limit)
}

func (s *reviews) ListByUser(ctx context.Context, userID string) ([]types.Review, error) {
	return s.reviews.ByUser(ctx, userID)
}

func (s *reviews) Delete(ctx context.Context, reviewID, userID, role string) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, database.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return err
	}

	if review.UserID != userID && role != types.RoleAdmin {
		return ErrNotAllowed
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, database.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return err
	}

	_, err = s.recompute(ctx, review.TempleID)
	if errors.Is(err, templefinder.ErrTempleNotFound) {
		return nil
	}

	return err
}
