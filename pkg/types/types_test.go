package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/matryer/is"
)

func TestValidTempleWithDefaults(t *testing.T) {
	is := is.New(t)

	temple := newTemple()
	temple.ApplyDefaults()

	is.NoErr(temple.Validate())
	is.Equal(temple.Category, CategoryHindu)
	is.Equal(temple.Country, DefaultCountry)
	is.Equal(temple.Capacity, DefaultCapacity)
	is.Equal(temple.Timings.WeeklySchedule.Sunday.Hours, "06:00-21:00")
}

func TestInvalidTemples(t *testing.T) {
	tests := map[string]func(*Temple){
		"short name":       func(t *Temple) { t.Name = "K" },
		"unknown category": func(t *Temple) { t.Category = "Pagan" },
		"missing address":  func(t *Temple) { t.Address = " " },
		"missing location": func(t *Temple) { t.Location = nil },
		"latitude 91":      func(t *Temple) { t.Location = &geo.Point{Latitude: 91, Longitude: 80} },
		"huge capacity":    func(t *Temple) { t.Capacity = MaxCapacity + 1 },
		"negative crowd":   func(t *Temple) { t.CurrentOccupancy = -1 },
		"bad email":        func(t *Temple) { t.Contact.Email = "not-an-email" },
		"named email":      func(t *Temple) { t.Contact.Email = "Office <office@kapaleeshwarar.org>" },
		"bad opening":      func(t *Temple) { t.Timings.OpeningTime = "6am" },
		"closes early":     func(t *Temple) { t.Timings.ClosingTime = "05:00" },
		"bad day hours":    func(t *Temple) { t.Timings.WeeklySchedule.Friday.Hours = "22:00-06:00" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			temple := newTemple()
			temple.ApplyDefaults()
			mutate(&temple)
			is.True(errors.Is(temple.Validate(), ErrValidation))
		})
	}
}

func TestTempleDecodesStructuredTimings(t *testing.T) {
	is := is.New(t)

	body := `{"name":"Kapaleeshwarar Temple","deity":"Lord Shiva","category":"Hindu",
		"address":"Ponnambala Vadyar St","locality":"Mylapore","city":"Chennai","state":"Tamil Nadu",
		"location":{"latitude":13.0339,"longitude":80.2620},
		"timings":{"openingTime":"05:30","closingTime":"22:00","weeklySchedule":{"monday":{"open":true,"timings":"05:30-22:00"}}},
		"facilities":{"parking":true,"atm":true}}`

	var temple Temple
	is.NoErr(json.Unmarshal([]byte(body), &temple))
	temple.ApplyDefaults()

	is.NoErr(temple.Validate())
	is.Equal(temple.Timings.OpeningTime, "05:30")
	is.True(temple.Timings.WeeklySchedule.Monday.Open)
	is.True(!temple.Timings.WeeklySchedule.Tuesday.Open)
	is.True(temple.Facilities.Parking)
	is.True(temple.Facilities.ATM)
	is.Equal(temple.Location.Latitude, 13.0339)
}

func TestCrowdLevel(t *testing.T) {
	is := is.New(t)

	is.Equal(CrowdLevelFor(1000, 0), CrowdLevelLow)
	is.Equal(CrowdLevelFor(1000, 299), CrowdLevelLow)
	is.Equal(CrowdLevelFor(1000, 300), CrowdLevelMedium)
	is.Equal(CrowdLevelFor(1000, 699), CrowdLevelMedium)
	is.Equal(CrowdLevelFor(1000, 700), CrowdLevelHigh)
	is.Equal(CrowdLevelFor(0, 10), CrowdLevelLow)
}

func TestPoojaTiming(t *testing.T) {
	is := is.New(t)

	p := PoojaTiming{Name: "Suprabhatam", StartTime: "05:30", EndTime: "06:00", DaysOfWeek: []int{0, 6}}
	is.NoErr(p.Validate())
	is.True(p.OnDay(time.Sunday))
	is.True(!p.OnDay(time.Monday))

	p.DaysOfWeek = nil
	is.True(p.OnDay(time.Wednesday))

	p.DaysOfWeek = []int{7}
	is.True(errors.Is(p.Validate(), ErrValidation))

	p.DaysOfWeek = nil
	p.EndTime = "05:00"
	is.True(errors.Is(p.Validate(), ErrValidation))
}

func TestReviewAndEventValidation(t *testing.T) {
	is := is.New(t)

	is.NoErr(Review{Rating: 5}.Validate())
	is.True(errors.Is(Review{Rating: 0}.Validate(), ErrValidation))
	is.True(errors.Is(Review{Rating: 6}.Validate(), ErrValidation))

	start := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	is.NoErr(Event{Name: "Mahashivratri", StartDate: start, EndDate: start}.Validate())
	is.True(errors.Is(Event{Name: "Mahashivratri"}.Validate(), ErrValidation))
	is.True(errors.Is(Event{Name: "Navaratri", StartDate: start, EndDate: start.AddDate(0, 0, -1)}.Validate(), ErrValidation))
}

func TestUserValidation(t *testing.T) {
	is := is.New(t)

	u := User{Name: "Meena", Email: "meena@example.com"}
	is.NoErr(u.Validate())

	for _, email := range []string{"meena", "Meena <meena@example.com>", "<meena@example.com>", "meena@example.com (Meena)"} {
		u.Email = email
		is.True(errors.Is(u.Validate(), ErrValidation))
	}

	u.Email = "meena@example.com"
	u.Phone = "+919876543210"
	is.NoErr(u.Validate())

	u.Phone = "098-765"
	is.True(errors.Is(u.Validate(), ErrValidation))

	u.Phone = ""
	u.Location = &UserLocation{Point: &geo.Point{Latitude: 13, Longitude: 200}}
	is.True(errors.Is(u.Validate(), ErrValidation))
}

func newTemple() Temple {
	return Temple{
		Name:     "Kapaleeshwarar Temple",
		Deity:    "Lord Shiva",
		Address:  "Ponnambala Vadyar St, Mylapore, Chennai, Tamil Nadu 600004",
		Locality: "Mylapore",
		City:     "Chennai",
		State:    "Tamil Nadu",
		Location: &geo.Point{Latitude: 13.0339, Longitude: 80.2620},
	}
}
