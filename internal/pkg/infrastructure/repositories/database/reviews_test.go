package database

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/diwise/temple-finder/pkg/types"
)

func TestReviews(t *testing.T) {
	is, ctx, temples, users, reviews := testSetupRepositories(t)

	meena, err := users.Create(ctx, types.User{Name: "Meena", Email: "meena@example.com", Role: types.RoleUser}, "hash")
	is.NoErr(err)
	ravi, err := users.Create(ctx, types.User{Name: "Ravi", Email: "ravi@example.com", Role: types.RoleUser}, "hash")
	is.NoErr(err)

	templeID := templeIDByName(t, ctx, temples, "Parthasarathy")

	stats, err := reviews.Stats(ctx, templeID)
	is.NoErr(err)
	is.Equal(stats, ReviewStats{})

	first, err := reviews.Add(ctx, types.Review{TempleID: templeID, UserID: meena.ID, Rating: 5, Comment: "Beautiful gopuram"})
	is.NoErr(err)
	is.Equal(first.UserName, "Meena")

	_, err = reviews.Add(ctx, types.Review{TempleID: templeID, UserID: ravi.ID, Rating: 4})
	is.NoErr(err)

	stats, err = reviews.Stats(ctx, templeID)
	is.NoErr(err)
	is.Equal(stats.Count, 2)
	is.Equal(stats.Average, 4.5)

	stats, err = reviews.RefreshTempleRating(ctx, templeID)
	is.NoErr(err)
	is.Equal(stats, ReviewStats{Average: 4.5, Count: 2})

	temple, err := temples.GetByID(ctx, templeID)
	is.NoErr(err)
	is.Equal(temple.Rating, 4.5)
	is.Equal(temple.ReviewCount, 2)

	collection, err := reviews.ByTemple(ctx, templeID, 0, 1)
	is.NoErr(err)
	is.Equal(collection.TotalCount, uint64(2))
	is.Equal(len(collection.Data), 1)

	mine, err := reviews.ByUser(ctx, meena.ID)
	is.NoErr(err)
	is.Equal(len(mine), 1)
	is.Equal(mine[0].Comment, "Beautiful gopuram")

	is.NoErr(reviews.Delete(ctx, first.ID))
	is.True(errors.Is(reviews.Delete(ctx, first.ID), ErrReviewNotFound))

	_, err = reviews.GetByID(ctx, first.ID)
	is.True(errors.Is(err, ErrReviewNotFound))

	_, err = reviews.Add(ctx, types.Review{TempleID: "unknown", UserID: ravi.ID, Rating: 3})
	is.True(err != nil)

	_, err = reviews.RefreshTempleRating(ctx, "unknown")
	is.True(errors.Is(err, ErrTempleNotFound))
}

func TestConcurrentReviewsKeepTempleRatingConsistent(t *testing.T) {
	is, ctx, temples, users, reviews := testSetupRepositories(t)

	templeID := templeIDByName(t, ctx, temples, "Kalikambal")

	const reviewers = 12

	userIDs := make([]string, reviewers)
	for i := range userIDs {
		user, err := users.Create(ctx, types.User{Name: fmt.Sprintf("Devotee %d", i), Email: fmt.Sprintf("devotee%d@example.com", i), Role: types.RoleUser}, "hash")
		is.NoErr(err)
		userIDs[i] = user.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, reviewers)

	for i, userID := range userIDs {
		wg.Add(1)
		go func(rating int, userID string) {
			defer wg.Done()
			if _, err := reviews.Add(ctx, types.Review{TempleID: templeID, UserID: userID, Rating: rating}); err != nil {
				errs <- err
				return
			}
			if _, err := reviews.RefreshTempleRating(ctx, templeID); err != nil {
				errs <- err
			}
		}(i%5+1, userID)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		is.NoErr(err)
	}

	temple, err := temples.GetByID(ctx, templeID)
	is.NoErr(err)
	is.Equal(temple.ReviewCount, reviewers)
	is.Equal(temple.Rating, 2.75)
}
