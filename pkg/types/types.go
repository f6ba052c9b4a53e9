package types

import (
	"time"

	"github.com/diwise/temple-finder/pkg/geo"
)

const (
	CategoryHindu    = "Hindu"
	CategoryBuddhist = "Buddhist"
	CategoryJain     = "Jain"
	CategorySikh     = "Sikh"
	CategoryOther    = "Other"
)

var Categories = []string{CategoryHindu, CategoryBuddhist, CategoryJain, CategorySikh, CategoryOther}

const (
	DefaultCountry  = "India"
	DefaultCapacity = 100
	MaxCapacity     = 100000
)

type Temple struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Deity       string `json:"deity"`
	Category    string `json:"category"`

	Address  string     `json:"address"`
	Locality string     `json:"locality"`
	City     string     `json:"city"`
	State    string     `json:"state"`
	Country  string     `json:"country"`
	Location *geo.Point `json:"location,omitempty"`

	Contact    Contact    `json:"contact"`
	Timings    Timings    `json:"timings"`
	Facilities Facilities `json:"facilities"`
	Metadata   Metadata   `json:"metadata"`

	Capacity         int        `json:"capacity"`
	CurrentOccupancy int        `json:"currentOccupancy"`
	CrowdLevel       CrowdLevel `json:"crowdLevel,omitempty"`

	Images []string `json:"images"`
	Tags   []string `json:"tags"`

	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`

	Verified bool `json:"verified"`
	Active   bool `json:"active"`
	Featured bool `json:"featured"`

	// Distance in kilometers from the search origin, only set by geographic queries.
	Distance *float64 `json:"distance,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Contact struct {
	Phone       string      `json:"phone,omitempty"`
	Email       string      `json:"email,omitempty"`
	Website     string      `json:"website,omitempty"`
	SocialMedia SocialMedia `json:"socialMedia"`
}

type SocialMedia struct {
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
}

type Timings struct {
	OpeningTime    string            `json:"openingTime"`
	ClosingTime    string            `json:"closingTime"`
	WeeklySchedule WeeklySchedule    `json:"weeklySchedule"`
	SpecialTimings map[string]string `json:"specialTimings,omitempty"`
}

type WeeklySchedule struct {
	Monday    DaySchedule `json:"monday"`
	Tuesday   DaySchedule `json:"tuesday"`
	Wednesday DaySchedule `json:"wednesday"`
	Thursday  DaySchedule `json:"thursday"`
	Friday    DaySchedule `json:"friday"`
	Saturday  DaySchedule `json:"saturday"`
	Sunday    DaySchedule `json:"sunday"`
}

type DaySchedule struct {
	Open  bool   `json:"open"`
	Hours string `json:"timings,omitempty"`
}

type Facilities struct {
	Parking          bool `json:"parking"`
	WheelchairAccess bool `json:"wheelchairAccess"`
	Restrooms        bool `json:"restrooms"`
	DrinkingWater    bool `json:"drinkingWater"`
	FoodCourt        bool `json:"foodCourt"`
	SouvenirShop     bool `json:"souvenirShop"`
	Accommodation    bool `json:"accommodation"`
	Wifi             bool `json:"wifi"`
	ATM              bool `json:"atm"`
	MedicalFacility  bool `json:"medicalFacility"`
}

type Metadata struct {
	EstablishedYear   string   `json:"establishedYear,omitempty"`
	Architecture      string   `json:"architecture,omitempty"`
	Significance      string   `json:"significance,omitempty"`
	Festivals         []string `json:"festivals,omitempty"`
	NearbyAttractions []string `json:"nearbyAttractions,omitempty"`
}

type CrowdLevel string

const (
	CrowdLevelLow    CrowdLevel = "low"
	CrowdLevelMedium CrowdLevel = "medium"
	CrowdLevelHigh   CrowdLevel = "high"
)

type User struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone,omitempty"`
	Avatar      string        `json:"avatar,omitempty"`
	Role        string        `json:"role"`
	Location    *UserLocation `json:"location,omitempty"`
	Preferences Preferences   `json:"preferences"`
	Verified    bool          `json:"verified"`
	Active      bool          `json:"active"`
	LastLoginAt *time.Time    `json:"lastLoginAt,omitempty"`
	LoginCount  int           `json:"loginCount"`
	CreatedAt   time.Time     `json:"createdAt"`
}

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// UserLocation is the last known location reported by a user.
type UserLocation struct {
	City    string     `json:"city,omitempty"`
	State   string     `json:"state,omitempty"`
	Country string     `json:"country,omitempty"`
	Point   *geo.Point `json:"coordinates,omitempty"`
}

type Preferences struct {
	Language      string                  `json:"language"`
	Notifications NotificationPreferences `json:"notifications"`
	Privacy       PrivacyPreferences      `json:"privacy"`
}

type NotificationPreferences struct {
	Email   bool `json:"email"`
	Push    bool `json:"push"`
	Events  bool `json:"events"`
	Reviews bool `json:"reviews"`
}

type PrivacyPreferences struct {
	Profile string `json:"profile"`
	Visits  string `json:"visits"`
	Reviews string `json:"reviews"`
}

type Review struct {
	ID        string     `json:"id"`
	TempleID  string     `json:"templeID"`
	UserID    string     `json:"userID"`
	UserName  string     `json:"userName,omitempty"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment,omitempty"`
	VisitDate *time.Time `json:"visitDate,omitempty"`
	Images    []string   `json:"images,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Favorite struct {
	UserID    string    `json:"userID"`
	TempleID  string    `json:"templeID"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is a festival or celebration hosted by a temple.
type Event struct {
	ID            string    `json:"id"`
	TempleID      string    `json:"templeID"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Significance  string    `json:"significance,omitempty"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	SpecialEvents []string  `json:"specialEvents,omitempty"`
}

type PoojaTiming struct {
	ID          string `json:"id"`
	TempleID    string `json:"templeID"`
	Name        string `json:"name"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description,omitempty"`
	Special     bool   `json:"special"`
	// DaysOfWeek holds 0 (Sunday) to 6 (Saturday).
	DaysOfWeek []int `json:"daysOfWeek"`
}

type Category struct {
	Name        string `json:"name"`
	TempleCount int    `json:"templeCount"`
}

type Collection[T any] struct {
	Data       []T
	Count      uint64
	Offset     uint64
	Limit      uint64
	TotalCount uint64
}
