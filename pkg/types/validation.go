package types

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrValidation = errors.New("validation failed")

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min || n > max {
		return invalid("%s must be between %d and %d characters", field, min, max)
	}
	return nil
}

// ApplyDefaults fills in the values a newly registered temple gets when the
// caller leaves them out.
func (t *Temple) ApplyDefaults() {
	if t.Category == "" {
		t.Category = CategoryHindu
	}
	if t.Country == "" {
		t.Country = DefaultCountry
	}
	if t.Capacity == 0 {
		t.Capacity = DefaultCapacity
	}
	if t.Timings.OpeningTime == "" && t.Timings.ClosingTime == "" {
		t.Timings = DefaultTimings()
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

func (t Temple) Validate() error {
	if err := checkLength("name", t.Name, 2, 255); err != nil {
		return err
	}
	if err := checkLength("deity", t.Deity, 2, 100); err != nil {
		return err
	}
	if !slices.Contains(Categories, t.Category) {
		return invalid("category must be one of %s", strings.Join(Categories, ", "))
	}
	if strings.TrimSpace(t.Address) == "" {
		return invalid("address is required")
	}
	if err := checkLength("locality", t.Locality, 2, 100); err != nil {
		return err
	}
	if err := checkLength("city", t.City, 2, 100); err != nil {
		return err
	}
	if err := checkLength("state", t.State, 2, 100); err != nil {
		return err
	}
	if err := checkLength("country", t.Country, 2, 100); err != nil {
		return err
	}
	if t.Location == nil {
		return invalid("location is required")
	}
	if err := t.Location.Validate(); err != nil {
		return fmt.Errorf("%w: location: %s", ErrValidation, err.Error())
	}
	if t.Capacity < 1 || t.Capacity > MaxCapacity {
		return invalid("capacity must be between 1 and %d", MaxCapacity)
	}
	if t.CurrentOccupancy < 0 {
		return invalid("current occupancy can not be negative")
	}
	if t.Rating < 0 || t.Rating > 5 {
		return invalid("rating must be between 0 and 5")
	}
	if err := t.Contact.Validate(); err != nil {
		return err
	}

	return t.Timings.Validate()
}

func (c Contact) Validate() error {
	if c.Email != "" {
		if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
			return invalid("contact email %q is not a valid address", c.Email)
		}
	}
	return nil
}

func DefaultTimings() Timings {
	day := DaySchedule{Open: true, Hours: "06:00-21:00"}
	return Timings{
		OpeningTime: "06:00",
		ClosingTime: "21:00",
		WeeklySchedule: WeeklySchedule{
			Monday: day, Tuesday: day, Wednesday: day, Thursday: day,
			Friday: day, Saturday: day, Sunday: day,
		},
	}
}

func (t Timings) Validate() error {
	open, err := parseClock(t.OpeningTime)
	if err != nil {
		return invalid("opening time: %s", err.Error())
	}
	closing, err := parseClock(t.ClosingTime)
	if err != nil {
		return invalid("closing time: %s", err.Error())
	}
	if !closing.After(open) {
		return invalid("closing time %s must be after opening time %s", t.ClosingTime, t.OpeningTime)
	}

	for name, day := range t.WeeklySchedule.Days() {
		if !day.Open || day.Hours == "" {
			continue
		}
		if _, _, err := ParseHours(day.Hours); err != nil {
			return invalid("%s: %s", name, err.Error())
		}
	}

	return nil
}

// Days returns the schedule keyed by lower case weekday name.
func (w WeeklySchedule) Days() map[string]DaySchedule {
	return map[string]DaySchedule{
		"monday":    w.Monday,
		"tuesday":   w.Tuesday,
		"wednesday": w.Wednesday,
		"thursday":  w.Thursday,
		"friday":    w.Friday,
		"saturday":  w.Saturday,
		"sunday":    w.Sunday,
	}
}

// ParseHours parses a "HH:MM-HH:MM" range.
func ParseHours(hours string) (string, string, error) {
	from, to, ok := strings.Cut(hours, "-")
	if !ok {
		return "", "", fmt.Errorf("%q is not a HH:MM-HH:MM range", hours)
	}
	f, err := parseClock(from)
	if err != nil {
		return "", "", err
	}
	t, err := parseClock(to)
	if err != nil {
		return "", "", err
	}
	if !t.After(f) {
		return "", "", fmt.Errorf("%q ends before it starts", hours)
	}
	return from, to, nil
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a HH:MM time", s)
	}
	return t, nil
}

// CrowdLevelFor classifies occupancy relative to capacity.
func CrowdLevelFor(capacity, occupancy int) CrowdLevel {
	if capacity <= 0 {
		return CrowdLevelLow
	}

	percentage := float64(occupancy) / float64(capacity) * 100

	switch {
	case percentage < 30:
		return CrowdLevelLow
	case percentage < 70:
		return CrowdLevelMedium
	default:
		return CrowdLevelHigh
	}
}

func (r Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return invalid("rating must be between 1 and 5")
	}
	if utf8.RuneCountInString(r.Comment) > 2000 {
		return invalid("comment can not be longer than 2000 characters")
	}
	return nil
}

func (e Event) Validate() error {
	if err := checkLength("name", e.Name, 2, 255); err != nil {
		return err
	}
	if e.StartDate.IsZero() {
		return invalid("start date is required")
	}
	if !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		return invalid("end date can not be before start date")
	}
	return nil
}

func (p PoojaTiming) Validate() error {
	if err := checkLength("name", p.Name, 2, 100); err != nil {
		return err
	}
	if _, _, err := ParseHours(p.StartTime + "-" + p.EndTime); err != nil {
		return invalid("%s", err.Error())
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return invalid("day of week %d is outside 0 (Sunday) to 6 (Saturday)", d)
		}
	}
	return nil
}

// OnDay reports whether the timing applies to the given weekday. A timing without
// days applies every day.
func (p PoojaTiming) OnDay(day time.Weekday) bool {
	return len(p.DaysOfWeek) == 0 || slices.Contains(p.DaysOfWeek, int(day))
}

func (u User) Validate() error {
	if err := checkLength("name", u.Name, 2, 100); err != nil {
		return err
	}
	// a display name or angle brackets parse but are not a bare address
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return invalid("email %q is not a valid address", u.Email)
	}
	if u.Phone != "" && !phonePattern.MatchString(u.Phone) {
		return invalid("phone %q is not a valid phone number", u.Phone)
	}
	if u.Location != nil && u.Location.Point != nil {
		if err := u.Location.Point.Validate(); err != nil {
			return fmt.Errorf("%w: location: %s", ErrValidation, err.Error())
		}
	}
	return nil
}

func DefaultPreferences() Preferences {
	return Preferences{
		Language: "en",
		Notifications: NotificationPreferences{
			Email: true, Push: true, Events: true, Reviews: true,
		},
		Privacy: PrivacyPreferences{
			Profile: "public", Visits: "public", Reviews: "public",
		},
	}
}
