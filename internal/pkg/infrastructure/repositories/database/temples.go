package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TempleRepository interface {
	Query(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Temple], error)
	GetByID(ctx context.Context, templeID string) (types.Temple, error)
	Exists(ctx context.Context, name, city, state string) (bool, error)

	Create(ctx context.Context, temple types.Temple) (types.Temple, error)
	Update(ctx context.Context, temple types.Temple) error
	SetActive(ctx context.Context, templeID string, active bool) error
	SetOccupancy(ctx context.Context, templeID string, occupancy int) error

	Categories(ctx context.Context) ([]types.Category, error)
	Deities(ctx context.Context) ([]types.Category, error)

	Events(ctx context.Context, templeID string, from *time.Time) ([]types.Event, error)
	AddEvent(ctx context.Context, event types.Event) (types.Event, error)
	PoojaTimings(ctx context.Context, templeID string) ([]types.PoojaTiming, error)
	AddPoojaTiming(ctx context.Context, timing types.PoojaTiming) (types.PoojaTiming, error)

	Seed(ctx context.Context, reader io.Reader) error
}

var ErrTempleNotFound = fmt.Errorf("temple not found")

func NewTempleRepository(connect ConnectorFunc) (TempleRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Temple{}, &Event{}, &PoojaTiming{})
	if err != nil {
		return nil, err
	}

	return &templeRepository{
		db: impl,
	}, nil
}

type templeRepository struct {
	db *gorm.DB
}

func (r *templeRepository) Query(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Temple], error) {
	logger := logging.GetFromContext(ctx)
	c := newCondition(conditions...)

	var total int64
	err := c.where(r.db.WithContext(ctx).Model(&Temple{})).Count(&total).Error
	if err != nil {
		logger.Error("failed to count temples", "err", err.Error())
		return types.Collection[types.Temple]{}, ErrRepositoryError
	}

	query, offset, limit := c.offsetLimit(c.orderBy(c.where(r.db.WithContext(ctx))))

	var temples []Temple
	err = query.Find(&temples).Error
	if err != nil {
		logger.Error("failed to query temples", "err", err.Error())
		return types.Collection[types.Temple]{}, ErrRepositoryError
	}

	result := make([]types.Temple, 0, len(temples))
	for _, t := range temples {
		result = append(result, t.ToType())
	}

	return types.Collection[types.Temple]{
		Data:       result,
		Count:      uint64(len(result)),
		Offset:     uint64(offset),
		Limit:      uint64(limit),
		TotalCount: uint64(total),
	}, nil
}

// GetByID returns the temple regardless of whether it is active or not.
func (r *templeRepository) GetByID(ctx context.Context, templeID string) (types.Temple, error) {
	var temple Temple

	err := r.db.WithContext(ctx).Where("id = ?", templeID).First(&temple).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Temple{}, ErrTempleNotFound
		}

		logging.GetFromContext(ctx).Error("gorm error", "templeID", templeID, "err", err.Error())
		return types.Temple{}, ErrRepositoryError
	}

	return temple.ToType(), nil
}

func (r *templeRepository) Exists(ctx context.Context, name, city, state string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&Temple{}).
		Where("LOWER(name) = ? AND LOWER(city) = ? AND LOWER(state) = ?",
			strings.ToLower(strings.TrimSpace(name)),
			strings.ToLower(strings.TrimSpace(city)),
			strings.ToLower(strings.TrimSpace(state))).
		Where("active = ?", true).
		Count(&count).Error

	return count > 0, err
}

func (r *templeRepository) Create(ctx context.Context, temple types.Temple) (types.Temple, error) {
	if temple.ID == "" {
		temple.ID = uuid.NewString()
	}

	model := TempleFromType(temple)
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error
	if err != nil {
		return types.Temple{}, fmt.Errorf("failed to create temple %s: %w", temple.Name, err)
	}

	return model.ToType(), nil
}

func (r *templeRepository) Update(ctx context.Context, temple types.Temple) error {
	model := TempleFromType(temple)

	result := r.db.WithContext(ctx).Omit(clause.Associations, "created_at").Save(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to update temple %s: %w", temple.ID, result.Error)
	}

	return nil
}

func (r *templeRepository) updateColumns(ctx context.Context, templeID string, values map[string]any) error {
	result := r.db.WithContext(ctx).Model(&Temple{}).Where("id = ?", templeID).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update temple %s: %w", templeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTempleNotFound
	}
	return nil
}

func (r *templeRepository) SetActive(ctx context.Context, templeID string, active bool) error {
	return r.updateColumns(ctx, templeID, map[string]any{"active": active})
}

func (r *templeRepository) SetOccupancy(ctx context.Context, templeID string, occupancy int) error {
	return r.updateColumns(ctx, templeID, map[string]any{"current_occupancy": occupancy})
}

func (r *templeRepository) Categories(ctx context.Context) ([]types.Category, error) {
	return r.groupCount(ctx, "category")
}

func (r *templeRepository) Deities(ctx context.Context) ([]types.Category, error) {
	return r.groupCount(ctx, "deity")
}

func (r *templeRepository) groupCount(ctx context.Context, column string) ([]types.Category, error) {
	var rows []struct {
		Name  string
		Count int
	}

	err := r.db.WithContext(ctx).Model(&Temple{}).
		Select(column+" AS name, COUNT(*) AS count").
		Where("active = ?", true).
		Group(column).
		Order("count DESC").
		Order(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group temples by %s: %w", column, err)
	}

	categories := make([]types.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, types.Category{Name: row.Name, TempleCount: row.Count})
	}

	return categories, nil
}

// Events returns the events of a temple ordered by start date. When from is given
// only events that have not ended before it are returned.
func (r *templeRepository) Events(ctx context.Context, templeID string, from *time.Time) ([]types.Event, error) {
	query := r.db.WithContext(ctx).Where("temple_id = ?", templeID)
	if from != nil {
		query = query.Where("end_date >= ?", from.UTC())
	}

	var events []Event
	err := query.Order("start_date").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events for temple %s: %w", templeID, err)
	}

	result := make([]types.Event, 0, len(events))
	for _, e := range events {
		result = append(result, e.ToType())
	}

	return result, nil
}

func (r *templeRepository) AddEvent(ctx context.Context, event types.Event) (types.Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EndDate.IsZero() {
		event.EndDate = event.StartDate
	}

	model := Event{
		ID:            event.ID,
		TempleID:      event.TempleID,
		Name:          event.Name,
		Description:   event.Description,
		Significance:  event.Significance,
		StartDate:     event.StartDate.UTC(),
		EndDate:       event.EndDate.UTC(),
		SpecialEvents: event.SpecialEvents,
	}

	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return types.Event{}, fmt.Errorf("failed to add event to temple %s: %w", event.TempleID, err)
	}

	return model.ToType(), nil
}

func (r *templeRepository) PoojaTimings(ctx context.Context, templeID string) ([]types.PoojaTiming, error) {
	var timings []PoojaTiming

	err := r.db.WithContext(ctx).
		Where("temple_id = ?", templeID).
		Order("start_time").
		Find(&timings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pooja timings for temple %s: %w", templeID, err)
	}

	result := make([]types.PoojaTiming, 0, len(timings))
	for _, p := range timings {
		result = append(result, p.ToType())
	}

	return result, nil
}

func (r *templeRepository) AddPoojaTiming(ctx context.Context, timing types.PoojaTiming) (types.PoojaTiming, error) {
	if timing.ID == "" {
		timing.ID = uuid.NewString()
	}

	model := PoojaTiming{
		ID:          timing.ID,
		TempleID:    timing.TempleID,
		Name:        timing.Name,
		StartTime:   timing.StartTime,
		EndTime:     timing.EndTime,
		Description: timing.Description,
		Special:     timing.Special,
		DaysOfWeek:  timing.DaysOfWeek,
	}

	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return types.PoojaTiming{}, fmt.Errorf("failed to add pooja timing to temple %s: %w", timing.TempleID, err)
	}

	return model.ToType(), nil
}
