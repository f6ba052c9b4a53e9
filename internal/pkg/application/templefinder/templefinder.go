package templefinder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/geocoding"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/metrics"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("temple-finder/templefinder")

var (
	ErrTempleNotFound      = errors.New("temple not found")
	ErrTempleAlreadyExists = errors.New("temple already exists")
	ErrInvalidParameter    = errors.New("invalid parameter")
)

type TempleFinder interface {
	Query(ctx context.Context, params url.Values) (types.Collection[types.Temple], error)
	Nearby(ctx context.Context, origin geo.Point, radiusKm float64, limit int) ([]types.Temple, error)

	GetByID(ctx context.Context, templeID string) (types.Temple, error)
	Create(ctx context.Context, temple types.Temple) (types.Temple, error)
	Update(ctx context.Context, templeID string, apply func(*types.Temple) error) (types.Temple, error)
	Delete(ctx context.Context, templeID string) error
	SetOccupancy(ctx context.Context, templeID string, occupancy int) (types.Temple, error)

	Categories(ctx context.Context) ([]types.Category, error)
	Deities(ctx context.Context) ([]types.Category, error)

	Events(ctx context.Context, templeID string, upcomingOnly bool) ([]types.Event, error)
	AddEvent(ctx context.Context, templeID string, event types.Event) (types.Event, error)
	PoojaTimings(ctx context.Context, templeID string, day *time.Weekday) ([]types.PoojaTiming, error)
	AddPoojaTiming(ctx context.Context, templeID string, timing types.PoojaTiming) (types.PoojaTiming, error)
}

type templeFinder struct {
	temples   database.TempleRepository
	geocoder  geocoding.Geocoder
	messenger messaging.MsgContext
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(temples database.TempleRepository, geocoder geocoding.Geocoder, messenger messaging.MsgContext, m *metrics.Metrics) TempleFinder {
	return &templeFinder{
		temples:   temples,
		geocoder:  geocoder,
		messenger: messenger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (tf *templeFinder) Query(ctx context.Context, params url.Values) (types.Collection[types.Temple], error) {
	q, err := ParseQuery(params)
	if err != nil {
		return types.Collection[types.Temple]{}, err
	}

	if q.Origin == nil {
		conditions := append(q.conditions(),
			database.WithSortBy(q.SortBy, q.Descending),
			database.WithOffset(q.Offset()),
			database.WithLimit(q.Limit),
		)
		return tf.temples.Query(ctx, conditions...)
	}

	nearby, err := tf.withinRadius(ctx, *q.Origin, q.RadiusKm, 0, q.conditions()...)
	if err != nil {
		return types.Collection[types.Temple]{}, err
	}

	if q.SortBy != "distance" || q.Descending {
		sortTemples(nearby, q.SortBy, q.Descending)
	}

	return paginate(nearby, q.Offset(), q.Limit), nil
}

func (tf *templeFinder) Nearby(ctx context.Context, origin geo.Point, radiusKm float64, limit int) ([]types.Temple, error) {
	if radiusKm == 0 {
		radiusKm = geo.NearbyRadiusKm
	}
	if limit == 0 {
		limit = DefaultNearby
	}

	temples, err := tf.withinRadius(ctx, origin, radiusKm, limit)
	if err != nil {
		return nil, err
	}

	tf.metrics.NearbySearch(len(temples))

	return temples, nil
}

// withinRadius narrows the candidates with a bounding box in the database and
// then applies the exact distance filter. The result is ordered by distance.
func (tf *templeFinder) withinRadius(ctx context.Context, origin geo.Point, radiusKm float64, limit int, conditions ...database.ConditionFunc) (result []types.Temple, err error) {
	ctx, span := tracer.Start(ctx, "within-radius")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	box, err := geo.BoundingBox(origin, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err.Error())
	}

	candidates, err := tf.temples.Query(ctx, append(conditions, database.WithBounds(box))...)
	if err != nil {
		return nil, err
	}

	nearby, err := geo.FindNearby(origin, lo.Map(candidates.Data, func(t types.Temple, _ int) geo.Candidate[types.Temple] {
		return geo.Candidate[types.Temple]{ID: t.ID, Point: *t.Location, Payload: t}
	}), radiusKm, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err.Error())
	}

	logging.GetFromContext(ctx).Debug("proximity search",
		"origin", origin.String(),
		"radius", radiusKm,
		"candidates", len(candidates.Data),
		"matches", len(nearby))

	return lo.Map(nearby, func(r geo.Result[types.Temple], _ int) types.Temple {
		t := r.Payload
		d := math.Round(r.DistanceKm*10) / 10
		t.Distance = &d
		return t
	}), nil
}

func sortTemples(temples []types.Temple, sortBy string, descending bool) {
	less := func(a, b types.Temple) bool {
		switch sortBy {
		case "rating":
			return a.Rating < b.Rating
		case "city":
			return strings.ToLower(a.City) < strings.ToLower(b.City)
		case "reviewCount":
			return a.ReviewCount < b.ReviewCount
		case "createdAt":
			return a.CreatedAt.Before(b.CreatedAt)
		case "distance":
			return *a.Distance < *b.Distance
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}

	sort.SliceStable(temples, func(i, j int) bool {
		if descending {
			return less(temples[j], temples[i])
		}
		return less(temples[i], temples[j])
	})
}

func paginate(temples []types.Temple, offset, limit int) types.Collection[types.Temple] {
	total := len(temples)
	start := min(offset, total)
	end := min(start+limit, total)

	page := temples[start:end]

	return types.Collection[types.Temple]{
		Data:       page,
		Count:      uint64(len(page)),
		Offset:     uint64(offset),
		Limit:      uint64(limit),
		TotalCount: uint64(total),
	}
}

func (tf *templeFinder) getActive(ctx context.Context, templeID string) (types.Temple, error) {
	temple, err := tf.temples.GetByID(ctx, templeID)
	if err != nil {
		if errors.Is(err, database.ErrTempleNotFound) {
			return types.Temple{}, ErrTempleNotFound
		}
		return types.Temple{}, err
	}

	if !temple.Active {
		return types.Temple{}, ErrTempleNotFound
	}

	return temple, nil
}

func (tf *templeFinder) GetByID(ctx context.Context, templeID string) (types.Temple, error) {
	return tf.getActive(ctx, templeID)
}

func (tf *templeFinder) Create(ctx context.Context, temple types.Temple) (types.Temple, error) {
	logger := logging.GetFromContext(ctx)

	temple.ApplyDefaults()

	if temple.Location == nil && tf.geocoder != nil {
		address := strings.Join(lo.Compact([]string{temple.Address, temple.Locality, temple.City, temple.State, temple.Country}), ", ")

		p, err := tf.geocoder.Geocode(ctx, address)
		if err != nil && !errors.Is(err, geocoding.ErrNotConfigured) {
			tf.metrics.GeocodeFailed()
			logger.Warn("failed to geocode temple address", "address", address, "err", err.Error())
		}
		if err == nil {
			temple.Location = &p
		}
	}

	if err := temple.Validate(); err != nil {
		return types.Temple{}, err
	}

	exists, err := tf.temples.Exists(ctx, temple.Name, temple.City, temple.State)
	if err != nil {
		return types.Temple{}, err
	}
	if exists {
		return types.Temple{}, fmt.Errorf("%w: %s in %s, %s", ErrTempleAlreadyExists, temple.Name, temple.City, temple.State)
	}

	temple.ID = ""
	temple.Rating = 0
	temple.ReviewCount = 0
	temple.Active = true
	temple.Distance = nil

	created, err := tf.temples.Create(ctx, temple)
	if err != nil {
		return types.Temple{}, err
	}

	logger.Info("registered temple", "templeID", created.ID, "name", created.Name)

	tf.publish(ctx, &types.TempleCreated{
		TempleID:  created.ID,
		Name:      created.Name,
		City:      created.City,
		Timestamp: tf.now(),
	})

	return created, nil
}

// Update applies the changes to the stored temple. Identity, ratings and
// timestamps can not be changed this way.
func (tf *templeFinder) Update(ctx context.Context, templeID string, apply func(*types.Temple) error) (types.Temple, error) {
	stored, err := tf.getActive(ctx, templeID)
	if err != nil {
		return types.Temple{}, err
	}

	temple := stored
	if err := apply(&temple); err != nil {
		return types.Temple{}, fmt.Errorf("%w: %s", types.ErrValidation, err.Error())
	}

	temple.ID = stored.ID
	temple.Rating = stored.Rating
	temple.ReviewCount = stored.ReviewCount
	temple.CreatedAt = stored.CreatedAt
	temple.Active = stored.Active
	temple.Distance = nil

	if err := temple.Validate(); err != nil {
		return types.Temple{}, err
	}

	if !strings.EqualFold(temple.Name, stored.Name) || !strings.EqualFold(temple.City, stored.City) || !strings.EqualFold(temple.State, stored.State) {
		exists, err := tf.temples.Exists(ctx, temple.Name, temple.City, temple.State)
		if err != nil {
			return types.Temple{}, err
		}
		if exists {
			return types.Temple{}, fmt.Errorf("%w: %s in %s, %s", ErrTempleAlreadyExists, temple.Name, temple.City, temple.State)
		}
	}

	if err := tf.temples.Update(ctx, temple); err != nil {
		return types.Temple{}, err
	}

	tf.publish(ctx, &types.TempleUpdated{TempleID: templeID, Timestamp: tf.now()})

	return tf.temples.GetByID(ctx, templeID)
}

// Delete deactivates the temple. Its reviews, events and favorites are kept.
func (tf *templeFinder) Delete(ctx context.Context, templeID string) error {
	if _, err := tf.getActive(ctx, templeID); err != nil {
		return err
	}

	if err := tf.temples.SetActive(ctx, templeID, false); err != nil {
		return err
	}

	tf.publish(ctx, &types.TempleDeleted{TempleID: templeID, Timestamp: tf.now()})

	return nil
}

func (tf *templeFinder) SetOccupancy(ctx context.Context, templeID string, occupancy int) (types.Temple, error) {
	if occupancy < 0 {
		return types.Temple{}, fmt.Errorf("%w: occupancy can not be negative", types.ErrValidation)
	}

	temple, err := tf.getActive(ctx, templeID)
	if err != nil {
		return types.Temple{}, err
	}

	if err := tf.temples.SetOccupancy(ctx, templeID, occupancy); err != nil {
		return types.Temple{}, err
	}

	temple.CurrentOccupancy = occupancy
	temple.CrowdLevel = types.CrowdLevelFor(temple.Capacity, occupancy)

	return temple, nil
}

func (tf *templeFinder) Categories(ctx context.Context) ([]types.Category, error) {
	return tf.temples.Categories(ctx)
}

func (tf *templeFinder) Deities(ctx context.Context) ([]types.Category, error) {
	return tf.temples.Deities(ctx)
}

func (tf *templeFinder) Events(ctx context.Context, templeID string, upcomingOnly bool) ([]types.Event, error) {
	if _, err := tf.getActive(ctx, templeID); err != nil {
		return nil, err
	}

	var from *time.Time
	if upcomingOnly {
		now := tf.now()
		from = &now
	}

	return tf.temples.Events(ctx, templeID, from)
}

func (tf *templeFinder) AddEvent(ctx context.Context, templeID string, event types.Event) (types.Event, error) {
	if _, err := tf.getActive(ctx, templeID); err != nil {
		return types.Event{}, err
	}

	if err := event.Validate(); err != nil {
		return types.Event{}, err
	}

	event.ID = ""
	event.TempleID = templeID

	return tf.temples.AddEvent(ctx, event)
}

// PoojaTimings returns the timings of a temple, limited to those held on day when
// one is given.
func (tf *templeFinder) PoojaTimings(ctx context.Context, templeID string, day *time.Weekday) ([]types.PoojaTiming, error) {
	if _, err := tf.getActive(ctx, templeID); err != nil {
		return nil, err
	}

	timings, err := tf.temples.PoojaTimings(ctx, templeID)
	if err != nil {
		return nil, err
	}

	if day == nil {
		return timings, nil
	}

	return lo.Filter(timings, func(p types.PoojaTiming, _ int) bool {
		return p.OnDay(*day)
	}), nil
}

func (tf *templeFinder) AddPoojaTiming(ctx context.Context, templeID string, timing types.PoojaTiming) (types.PoojaTiming, error) {
	if _, err := tf.getActive(ctx, templeID); err != nil {
		return types.PoojaTiming{}, err
	}

	if err := timing.Validate(); err != nil {
		return types.PoojaTiming{}, err
	}

	timing.ID = ""
	timing.TempleID = templeID

	return tf.temples.AddPoojaTiming(ctx, timing)
}

func (tf *templeFinder) publish(ctx context.Context, message messaging.TopicMessage) {
	if err := tf.messenger.PublishOnTopic(ctx, message); err != nil {
		tf.metrics.PublishFailed(message.TopicName())
		logging.GetFromContext(ctx).Error("failed to publish message", "topic", message.TopicName(), "err", err.Error())
	}
}
