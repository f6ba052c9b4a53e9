package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user types.User, passwordHash string) (types.User, error)
	GetByID(ctx context.Context, userID string) (types.User, error)
	// GetByEmail returns the user together with the stored password hash.
	GetByEmail(ctx context.Context, email string) (types.User, string, error)
	Update(ctx context.Context, user types.User) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error

	AddFavorite(ctx context.Context, userID, templeID string) error
	RemoveFavorite(ctx context.Context, userID, templeID string) error
	Favorites(ctx context.Context, userID string) ([]types.Temple, error)
	IsFavorite(ctx context.Context, userID, templeID string) (bool, error)
}

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrFavoriteNotFound = errors.New("favorite not found")
)

func NewUserRepository(connect ConnectorFunc) (UserRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Temple{}, &User{}, &Favorite{})
	if err != nil {
		return nil, err
	}

	return &userRepository{
		db: impl,
	}, nil
}

type userRepository struct {
	db *gorm.DB
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(ctx context.Context, user types.User, passwordHash string) (types.User, error) {
	email := normalizeEmail(user.Email)

	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return types.User{}, fmt.Errorf("failed to look up email: %w", err)
	}
	if count > 0 {
		return types.User{}, ErrEmailTaken
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	model := User{
		ID:           user.ID,
		Name:         strings.TrimSpace(user.Name),
		Email:        email,
		PasswordHash: passwordHash,
		Phone:        user.Phone,
		Avatar:       user.Avatar,
		Role:         user.Role,
		Preferences:  user.Preferences,
		Verified:     user.Verified,
		Active:       true,
	}
	setUserLocation(&model, user.Location)

	err = r.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error
	if err != nil {
		return types.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return model.ToType(), nil
}

func setUserLocation(model *User, location *types.UserLocation) {
	model.City, model.State, model.Country = "", "", ""
	model.Latitude, model.Longitude = nil, nil

	if location == nil {
		return
	}

	model.City = location.City
	model.State = location.State
	model.Country = location.Country

	if location.Point != nil {
		lat, lon := location.Point.Latitude, location.Point.Longitude
		model.Latitude, model.Longitude = &lat, &lon
	}
}

func (r *userRepository) find(ctx context.Context, query string, arg any) (User, error) {
	var user User

	err := r.db.WithContext(ctx).Where(query, arg).Where("active = ?", true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		logging.GetFromContext(ctx).Error("gorm error", "err", err.Error())
		return User{}, ErrRepositoryError
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (types.User, error) {
	user, err := r.find(ctx, "id = ?", userID)
	if err != nil {
		return types.User{}, err
	}
	return user.ToType(), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (types.User, string, error) {
	user, err := r.find(ctx, "email = ?", normalizeEmail(email))
	if err != nil {
		return types.User{}, "", err
	}
	return user.ToType(), user.PasswordHash, nil
}

// Update stores the profile fields of the user. Email, role and password are not
// changed.
func (r *userRepository) Update(ctx context.Context, user types.User) error {
	model, err := r.find(ctx, "id = ?", user.ID)
	if err != nil {
		return err
	}

	model.Name = strings.TrimSpace(user.Name)
	model.Phone = user.Phone
	model.Avatar = user.Avatar
	model.Preferences = user.Preferences
	setUserLocation(&model, user.Location)

	err = r.db.WithContext(ctx).Omit(clause.Associations).Save(&model).Error
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}

	return nil
}

func (r *userRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_login_at": at.UTC(),
			"login_count":   gorm.Expr("login_count + ?", 1),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to record login: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddFavorite is idempotent, adding a temple that is already a favorite is not an error.
func (r *userRepository) AddFavorite(ctx context.Context, userID, templeID string) error {
	favorite := Favorite{UserID: userID, TempleID: templeID, CreatedAt: time.Now().UTC()}

	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&favorite).Error
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	return nil
}

func (r *userRepository) RemoveFavorite(ctx context.Context, userID, templeID string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND temple_id = ?", userID, templeID).
		Delete(&Favorite{})

	if result.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

// Favorites returns the active temples the user has marked, most recently added first.
func (r *userRepository) Favorites(ctx context.Context, userID string) ([]types.Temple, error) {
	var temples []Temple

	err := r.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.temple_id = temples.id").
		Where("favorites.user_id = ? AND temples.active = ?", userID, true).
		Order("favorites.created_at DESC").
		Find(&temples).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch favorites: %w", err)
	}

	result := make([]types.Temple, 0, len(temples))
	for _, t := range temples {
		result = append(result, t.ToType())
	}

	return result, nil
}

func (r *userRepository) IsFavorite(ctx context.Context, userID, templeID string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&Favorite{}).
		Where("user_id = ? AND temple_id = ?", userID, templeID).
		Count(&count).Error

	return count > 0, err
}
