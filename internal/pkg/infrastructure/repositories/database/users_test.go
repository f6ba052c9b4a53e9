package database

import (
	"errors"
	"testing"
	"time"

	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
)

func TestCreateAndGetUser(t *testing.T) {
	is, ctx, _, users, _ := testSetupRepositories(t)

	created, err := users.Create(ctx, types.User{Name: " Meena ", Email: "Meena@Example.com ", Role: types.RoleUser, Preferences: types.DefaultPreferences()}, "hash")
	is.NoErr(err)
	is.Equal(created.Email, "meena@example.com")
	is.Equal(created.Name, "Meena")
	is.True(created.Active)
	is.True(created.Location == nil)

	_, err = users.Create(ctx, types.User{Name: "Other", Email: "MEENA@example.com"}, "hash")
	is.True(errors.Is(err, ErrEmailTaken))

	user, hash, err := users.GetByEmail(ctx, "meena@EXAMPLE.com")
	is.NoErr(err)
	is.Equal(hash, "hash")
	is.Equal(user.ID, created.ID)
	is.Equal(user.Preferences.Language, "en")

	_, err = users.GetByID(ctx, "unknown")
	is.True(errors.Is(err, ErrUserNotFound))
}

func TestUpdateUserLocationAndLogins(t *testing.T) {
	is, ctx, _, users, _ := testSetupRepositories(t)

	user, err := users.Create(ctx, types.User{Name: "Ravi", Email: "ravi@example.com", Role: types.RoleUser}, "hash")
	is.NoErr(err)

	user.Name = "Ravi Kumar"
	user.Location = &types.UserLocation{City: "Chennai", Point: &geo.Point{Latitude: 13.05, Longitude: 80.25}}
	is.NoErr(users.Update(ctx, user))

	at := time.Date(2024, 1, 14, 6, 0, 0, 0, time.UTC)
	is.NoErr(users.RecordLogin(ctx, user.ID, at))
	is.NoErr(users.RecordLogin(ctx, user.ID, at.Add(time.Hour)))

	fromDb, err := users.GetByID(ctx, user.ID)
	is.NoErr(err)
	is.Equal(fromDb.Name, "Ravi Kumar")
	is.Equal(fromDb.Location.City, "Chennai")
	is.Equal(*fromDb.Location.Point, geo.Point{Latitude: 13.05, Longitude: 80.25})
	is.Equal(fromDb.LoginCount, 2)
	is.True(fromDb.LastLoginAt.Equal(at.Add(time.Hour)))

	is.True(errors.Is(users.RecordLogin(ctx, "unknown", at), ErrUserNotFound))
	is.True(errors.Is(users.Update(ctx, types.User{ID: "unknown", Name: "Nobody"}), ErrUserNotFound))
}

func TestFavorites(t *testing.T) {
	is, ctx, temples, users, _ := testSetupRepositories(t)

	user, err := users.Create(ctx, types.User{Name: "Lakshmi", Email: "lakshmi@example.com", Role: types.RoleUser}, "hash")
	is.NoErr(err)

	kapaleeshwarar := templeIDByName(t, ctx, temples, "Kapaleeshwarar")
	siddhivinayak := templeIDByName(t, ctx, temples, "Siddhivinayak")

	is.NoErr(users.AddFavorite(ctx, user.ID, kapaleeshwarar))
	is.NoErr(users.AddFavorite(ctx, user.ID, kapaleeshwarar))
	is.NoErr(users.AddFavorite(ctx, user.ID, siddhivinayak))

	favorites, err := users.Favorites(ctx, user.ID)
	is.NoErr(err)
	is.Equal(len(favorites), 2)

	ok, err := users.IsFavorite(ctx, user.ID, siddhivinayak)
	is.NoErr(err)
	is.True(ok)

	is.NoErr(temples.SetActive(ctx, siddhivinayak, false))
	favorites, err = users.Favorites(ctx, user.ID)
	is.NoErr(err)
	is.Equal(len(favorites), 1)
	is.Equal(favorites[0].ID, kapaleeshwarar)

	is.NoErr(users.RemoveFavorite(ctx, user.ID, kapaleeshwarar))
	is.True(errors.Is(users.RemoveFavorite(ctx, user.ID, kapaleeshwarar), ErrFavoriteNotFound))
}
