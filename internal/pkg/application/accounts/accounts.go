package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/internal/pkg/application/templefinder"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoLocation         = errors.New("user has no known location")
	ErrFavoriteNotFound   = errors.New("temple is not a favorite")
)

// TokenIssuer creates signed access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user types.User) (string, error)
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type Accounts interface {
	Register(ctx context.Context, r Registration) (types.User, string, error)
	Login(ctx context.Context, email, password string) (types.User, string, error)

	Profile(ctx context.Context, userID string) (types.User, error)
	UpdateProfile(ctx context.Context, userID string, apply func(*types.User) error) (types.User, error)
	UpdateLocation(ctx context.Context, userID string, location types.UserLocation) (types.User, error)

	Favorites(ctx context.Context, userID string) ([]types.Temple, error)
	AddFavorite(ctx context.Context, userID, templeID string) error
	RemoveFavorite(ctx context.Context, userID, templeID string) error

	NearbyForUser(ctx context.Context, userID string, radiusKm float64, limit int) ([]types.Temple, error)
}

type Config struct {
	AdminEmails []string
	BcryptCost  int
}

type accounts struct {
	users   database.UserRepository
	temples templefinder.TempleFinder
	tokens  TokenIssuer
	admins  map[string]bool
	cost    int
	now     func() time.Time
}

func New(users database.UserRepository, temples templefinder.TempleFinder, tokens TokenIssuer, cfg Config) Accounts {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = 12
	}

	admins := lo.SliceToMap(cfg.AdminEmails, func(email string) (string, bool) {
		return strings.ToLower(strings.TrimSpace(email)), true
	})

	return &accounts{
		users:   users,
		temples: temples,
		tokens:  tokens,
		admins:  admins,
		cost:    cost,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func mapUserError(err error) error {
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, database.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, database.ErrFavoriteNotFound):
		return ErrFavoriteNotFound
	default:
		return err
	}
}

func (a *accounts) Register(ctx context.Context, r Registration) (types.User, string, error) {
	n := utf8.RuneCountInString(r.Password)
	if n < 6 || len(r.Password) > 72 {
		return types.User{}, "", fmt.Errorf("%w: password must be between 6 and 72 characters", types.ErrValidation)
	}

	user := types.User{
		Name:        strings.TrimSpace(r.Name),
		Email:       strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:       r.Phone,
		Role:        types.RoleUser,
		Preferences: types.DefaultPreferences(),
	}

	if err := user.Validate(); err != nil {
		return types.User{}, "", err
	}

	if a.admins[user.Email] {
		user.Role = types.RoleAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), a.cost)
	if err != nil {
		return types.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := a.users.Create(ctx, user, string(hash))
	if err != nil {
		return types.User{}, "", mapUserError(err)
	}

	logging.GetFromContext(ctx).Info("registered user", "userID", created.ID, "role", created.Role)

	token, err := a.tokens.Issue(created)
	if err != nil {
		return types.User{}, "", err
	}

	return created, token, nil
}

func (a *accounts) Login(ctx context.Context, email, password string) (types.User, string, error) {
	user, hash, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	now := a.now()
	if err := a.users.RecordLogin(ctx, user.ID, now); err != nil {
		return types.User{}, "", mapUserError(err)
	}
	user.LastLoginAt = &now
	user.LoginCount++

	token, err := a.tokens.Issue(user)
	if err != nil {
		return types.User{}, "", err
	}

	return user, token, nil
}

func (a *accounts) Profile(ctx context.Context, userID string) (types.User, error) {
	user, err := a.users.GetByID(ctx, userID)
	return user, mapUserError(err)
}

// UpdateProfile applies changes to the name, phone, avatar, location and
// preferences of a user.
func (a *accounts) UpdateProfile(ctx context.Context, userID string, apply func(*types.User) error) (types.User, error) {
	stored, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, mapUserError(err)
	}

	user := stored
	if err := apply(&user); err != nil {
		return types.User{}, fmt.Errorf("%w: %s", types.ErrValidation, err.Error())
	}

	user.ID = stored.ID
	user.Email = stored.Email
	user.Role = stored.Role

	if err := user.Validate(); err != nil {
		return types.User{}, err
	}

	if err := a.users.Update(ctx, user); err != nil {
		return types.User{}, mapUserError(err)
	}

	return a.Profile(ctx, userID)
}

func (a *accounts) UpdateLocation(ctx context.Context, userID string, location types.UserLocation) (types.User, error) {
	if location.Point == nil {
		return types.User{}, fmt.Errorf("%w: coordinates are required", types.ErrValidation)
	}

	return a.UpdateProfile(ctx, userID, func(u *types.User) error {
		u.Location = &location
		return nil
	})
}

func (a *accounts) Favorites(ctx context.Context, userID string) ([]types.Temple, error) {
	favorites, err := a.users.Favorites(ctx, userID)
	return favorites, mapUserError(err)
}

func (a *accounts) AddFavorite(ctx context.Context, userID, templeID string) error {
	if _, err := a.temples.GetByID(ctx, templeID); err != nil {
		return err
	}

	return mapUserError(a.users.AddFavorite(ctx, userID, templeID))
}

func (a *accounts) RemoveFavorite(ctx context.Context, userID, templeID string) error {
	return mapUserError(a.users.RemoveFavorite(ctx, userID, templeID))
}

// NearbyForUser finds temples around the last location reported by the user.
func (a *accounts) NearbyForUser(ctx context.Context, userID string, radiusKm float64, limit int) ([]types.Temple, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}

	if user.Location == nil || user.Location.Point == nil {
		return nil, ErrNoLocation
	}

	return a.temples.Nearby(ctx, *user.Location.Point, radiusKm, limit)
}
