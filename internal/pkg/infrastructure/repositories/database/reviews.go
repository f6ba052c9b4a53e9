package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewRepository interface {
	Add(ctx context.Context, review types.Review) (types.Review, error)
	GetByID(ctx context.Context, reviewID string) (types.Review, error)
	ByTemple(ctx context.Context, templeID string, offset, limit int) (types.Collection[types.Review], error)
	ByUser(ctx context.Context, userID string) ([]types.Review, error)
	Delete(ctx context.Context, reviewID string) error
	Stats(ctx context.Context, templeID string) (ReviewStats, error)
	RefreshTempleRating(ctx context.Context, templeID string) (ReviewStats, error)
}

type ReviewStats struct {
	Average float64
	Count   int
}

var ErrReviewNotFound = errors.New("review not found")

func NewReviewRepository(connect ConnectorFunc) (ReviewRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Temple{}, &User{}, &Review{})
	if err != nil {
		return nil, err
	}

	return &reviewRepository{
		db: impl,
	}, nil
}

type reviewRepository struct {
	db *gorm.DB
}

func (r *reviewRepository) Add(ctx context.Context, review types.Review) (types.Review, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}

	model := Review{
		ID:        review.ID,
		TempleID:  review.TempleID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		VisitDate: review.VisitDate,
		Images:    review.Images,
	}

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error
	if err != nil {
		return types.Review{}, fmt.Errorf("failed to add review to temple %s: %w", review.TempleID, err)
	}

	return r.GetByID(ctx, model.ID)
}

func (r *reviewRepository) GetByID(ctx context.Context, reviewID string) (types.Review, error) {
	var review Review

	err := r.db.WithContext(ctx).Preload("User").Where("id = ?", reviewID).First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Review{}, ErrReviewNotFound
		}

		logging.GetFromContext(ctx).Error("gorm error", "reviewID", reviewID, "err", err.Error())
		return types.Review{}, ErrRepositoryError
	}

	return review.ToType(), nil
}

// ByTemple returns the reviews of a temple, newest first.
func (r *reviewRepository) ByTemple(ctx context.Context, templeID string, offset, limit int) (types.Collection[types.Review], error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Review{}).Where("temple_id = ?", templeID).Count(&total).Error
	if err != nil {
		return types.Collection[types.Review]{}, fmt.Errorf("failed to count reviews: %w", err)
	}

	query := r.db.WithContext(ctx).
		Preload("User").
		Where("temple_id = ?", templeID).
		Order("created_at DESC").
		Order("id")

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reviews []Review
	if err = query.Find(&reviews).Error; err != nil {
		return types.Collection[types.Review]{}, fmt.Errorf("failed to fetch reviews: %w", err)
	}

	result := make([]types.Review, 0, len(reviews))
	for _, rv := range reviews {
		result = append(result, rv.ToType())
	}

	return types.Collection[types.Review]{
		Data:       result,
		Count:      uint64(len(result)),
		Offset:     uint64(offset),
		Limit:      uint64(limit),
		TotalCount: uint64(total),
	}, nil
}

func (r *reviewRepository) ByUser(ctx context.Context, userID string) ([]types.Review, error) {
	var reviews []Review

	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}

	result := make([]types.Review, 0, len(reviews))
	for _, rv := range reviews {
		result = append(result, rv.ToType())
	}

	return result, nil
}

func (r *reviewRepository) Delete(ctx context.Context, reviewID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", reviewID).Delete(&Review{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete review %s: %w", reviewID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *reviewRepository) Stats(ctx context.Context, templeID string) (ReviewStats, error) {
	var stats struct {
		Average *float64
		Count   int
	}

	err := r.db.WithContext(ctx).Model(&Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("temple_id = ?", templeID).
		Scan(&stats).Error
	if err != nil {
		return ReviewStats{}, fmt.Errorf("failed to compute review stats: %w", err)
	}

	result := ReviewStats{Count: stats.Count}
	if stats.Average != nil {
		result.Average = *stats.Average
	}

	return result, nil
}

// RefreshTempleRating stores the average rating, rounded to two decimals, and
// the review count on the temple. The aggregate is computed by the same
// statement that writes it so that concurrent reviews cannot leave a stale value.
func (r *reviewRepository) RefreshTempleRating(ctx context.Context, templeID string) (ReviewStats, error) {
	var stats ReviewStats

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(`UPDATE temples SET
			rating = COALESCE((SELECT ROUND(AVG(rating), 2) FROM reviews WHERE temple_id = ?), 0),
			review_count = (SELECT COUNT(*) FROM reviews WHERE temple_id = ?)
			WHERE id = ?`, templeID, templeID, templeID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTempleNotFound
		}

		var temple Temple
		err := tx.Select("rating", "review_count").Where("id = ?", templeID).First(&temple).Error
		if err != nil {
			return err
		}

		stats = ReviewStats{Average: temple.Rating, Count: temple.ReviewCount}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTempleNotFound) {
			return ReviewStats{}, err
		}
		return ReviewStats{}, fmt.Errorf("failed to refresh rating of temple %s: %w", templeID, err)
	}

	return stats, nil
}
