package database

import (
	"time"

	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
)

type Temple struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:255;not null;index"`
	Description string
	Deity       string `gorm:"size:100;not null;index"`
	Category    string `gorm:"size:20;not null;index"`

	Address   string  `gorm:"not null"`
	Locality  string  `gorm:"size:100;not null"`
	City      string  `gorm:"size:100;not null;index:idx_temples_city_state"`
	State     string  `gorm:"size:100;not null;index:idx_temples_city_state"`
	Country   string  `gorm:"size:100;not null"`
	Latitude  float64 `gorm:"not null;index:idx_temples_location"`
	Longitude float64 `gorm:"not null;index:idx_temples_location"`

	Contact    types.Contact    `gorm:"serializer:json"`
	Timings    types.Timings    `gorm:"serializer:json"`
	Facilities types.Facilities `gorm:"serializer:json"`
	Metadata   types.Metadata   `gorm:"serializer:json"`

	Capacity         int
	CurrentOccupancy int

	Images []string `gorm:"serializer:json"`
	Tags   []string `gorm:"serializer:json"`

	Rating      float64 `gorm:"index"`
	ReviewCount int

	Verified bool
	Active   bool `gorm:"index"`
	Featured bool

	CreatedAt time.Time
	UpdatedAt time.Time

	Events       []Event       `gorm:"constraint:OnDelete:CASCADE"`
	PoojaTimings []PoojaTiming `gorm:"constraint:OnDelete:CASCADE"`
}

func (t Temple) Point() geo.Point {
	return geo.Point{Latitude: t.Latitude, Longitude: t.Longitude}
}

func (t Temple) ToType() types.Temple {
	p := t.Point()

	return types.Temple{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		Deity:            t.Deity,
		Category:         t.Category,
		Address:          t.Address,
		Locality:         t.Locality,
		City:             t.City,
		State:            t.State,
		Country:          t.Country,
		Location:         &p,
		Contact:          t.Contact,
		Timings:          t.Timings,
		Facilities:       t.Facilities,
		Metadata:         t.Metadata,
		Capacity:         t.Capacity,
		CurrentOccupancy: t.CurrentOccupancy,
		CrowdLevel:       types.CrowdLevelFor(t.Capacity, t.CurrentOccupancy),
		Images:           nonNil(t.Images),
		Tags:             nonNil(t.Tags),
		Rating:           t.Rating,
		ReviewCount:      t.ReviewCount,
		Verified:         t.Verified,
		Active:           t.Active,
		Featured:         t.Featured,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func TempleFromType(t types.Temple) Temple {
	temple := Temple{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		Deity:            t.Deity,
		Category:         t.Category,
		Address:          t.Address,
		Locality:         t.Locality,
		City:             t.City,
		State:            t.State,
		Country:          t.Country,
		Contact:          t.Contact,
		Timings:          t.Timings,
		Facilities:       t.Facilities,
		Metadata:         t.Metadata,
		Capacity:         t.Capacity,
		CurrentOccupancy: t.CurrentOccupancy,
		Images:           t.Images,
		Tags:             t.Tags,
		Rating:           t.Rating,
		ReviewCount:      t.ReviewCount,
		Verified:         t.Verified,
		Active:           t.Active,
		Featured:         t.Featured,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}

	if t.Location != nil {
		temple.Latitude = t.Location.Latitude
		temple.Longitude = t.Location.Longitude
	}

	return temple
}

type Event struct {
	ID            string `gorm:"primaryKey;size:36"`
	TempleID      string `gorm:"size:36;not null;index"`
	Name          string `gorm:"size:255;not null"`
	Description   string
	Significance  string
	StartDate     time.Time `gorm:"index"`
	EndDate       time.Time
	SpecialEvents []string `gorm:"serializer:json"`
	CreatedAt     time.Time
}

func (e Event) ToType() types.Event {
	return types.Event{
		ID:            e.ID,
		TempleID:      e.TempleID,
		Name:          e.Name,
		Description:   e.Description,
		Significance:  e.Significance,
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
		SpecialEvents: e.SpecialEvents,
	}
}

type PoojaTiming struct {
	ID          string `gorm:"primaryKey;size:36"`
	TempleID    string `gorm:"size:36;not null;index"`
	Name        string `gorm:"size:100;not null"`
	StartTime   string `gorm:"size:5;not null"`
	EndTime     string `gorm:"size:5;not null"`
	Description string
	Special     bool
	DaysOfWeek  []int `gorm:"serializer:json"`
}

func (p PoojaTiming) ToType() types.PoojaTiming {
	return types.PoojaTiming{
		ID:          p.ID,
		TempleID:    p.TempleID,
		Name:        p.Name,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Description: p.Description,
		Special:     p.Special,
		DaysOfWeek:  nonNil(p.DaysOfWeek),
	}
}

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:100;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	Phone        string `gorm:"size:20"`
	Avatar       string
	Role         string `gorm:"size:20;not null"`

	City      string
	State     string
	Country   string
	Latitude  *float64
	Longitude *float64

	Preferences types.Preferences `gorm:"serializer:json"`

	Verified    bool
	Active      bool
	LastLoginAt *time.Time
	LoginCount  int

	CreatedAt time.Time
	UpdatedAt time.Time

	Favorites []Favorite `gorm:"constraint:OnDelete:CASCADE"`
}

func (u User) ToType() types.User {
	user := types.User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Avatar:      u.Avatar,
		Role:        u.Role,
		Preferences: u.Preferences,
		Verified:    u.Verified,
		Active:      u.Active,
		LastLoginAt: u.LastLoginAt,
		LoginCount:  u.LoginCount,
		CreatedAt:   u.CreatedAt,
	}

	if u.City != "" || u.State != "" || u.Country != "" || u.Latitude != nil {
		user.Location = &types.UserLocation{City: u.City, State: u.State, Country: u.Country}
		if u.Latitude != nil && u.Longitude != nil {
			user.Location.Point = &geo.Point{Latitude: *u.Latitude, Longitude: *u.Longitude}
		}
	}

	return user
}

type Favorite struct {
	UserID    string `gorm:"primaryKey;size:36"`
	TempleID  string `gorm:"primaryKey;size:36;index"`
	Temple    Temple `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

type Review struct {
	ID        string `gorm:"primaryKey;size:36"`
	TempleID  string `gorm:"size:36;not null;index"`
	Temple    Temple `gorm:"constraint:OnDelete:CASCADE"`
	UserID    string `gorm:"size:36;not null;index"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Rating    int    `gorm:"not null"`
	Comment   string
	VisitDate *time.Time
	Images    []string `gorm:"serializer:json"`
	CreatedAt time.Time `gorm:"index"`
}

func (r Review) ToType() types.Review {
	return types.Review{
		ID:        r.ID,
		TempleID:  r.TempleID,
		UserID:    r.UserID,
		UserName:  r.User.Name,
		Rating:    r.Rating,
		Comment:   r.Comment,
		VisitDate: r.VisitDate,
		Images:    r.Images,
		CreatedAt: r.CreatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
