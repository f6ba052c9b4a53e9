package database

import (
	"strings"

	"github.com/diwise/temple-finder/pkg/geo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConditionFunc func(*Condition) *Condition

type Condition struct {
	Search    string
	City      string
	State     string
	Category  string
	Deity     string
	Featured  *bool
	MinRating *float64
	Bounds    *geo.Box

	IncludeInactive bool

	sortBy    string
	sortOrder string

	offset *int
	limit  *int
}

// sortColumns maps the sort keys accepted from clients to database columns.
var sortColumns = map[string]string{
	"name":        "name",
	"rating":      "rating",
	"city":        "city",
	"reviewCount": "review_count",
	"createdAt":   "created_at",
}

func IsSortableColumn(sortBy string) bool {
	_, ok := sortColumns[sortBy]
	return ok
}

func WithSearch(s string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Search = strings.TrimSpace(s)
		return c
	}
}

func WithCity(city string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.City = city
		return c
	}
}

func WithState(state string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.State = state
		return c
	}
}

func WithCategory(category string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Category = category
		return c
	}
}

func WithDeity(deity string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Deity = deity
		return c
	}
}

func WithFeatured(featured bool) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Featured = &featured
		return c
	}
}

func WithMinRating(rating float64) ConditionFunc {
	return func(c *Condition) *Condition {
		c.MinRating = &rating
		return c
	}
}

func WithBounds(box geo.Box) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Bounds = &box
		return c
	}
}

func WithInactive() ConditionFunc {
	return func(c *Condition) *Condition {
		c.IncludeInactive = true
		return c
	}
}

// WithSortBy ignores keys that have no matching column.
func WithSortBy(sortBy string, descending bool) ConditionFunc {
	return func(c *Condition) *Condition {
		if col, ok := sortColumns[sortBy]; ok {
			c.sortBy = col
			c.sortOrder = "ASC"
			if descending {
				c.sortOrder = "DESC"
			}
		}
		return c
	}
}

func WithOffset(offset int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.offset = &offset
		return c
	}
}

func WithLimit(limit int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.limit = &limit
		return c
	}
}

func newCondition(conditions ...ConditionFunc) *Condition {
	c := &Condition{}
	for _, f := range conditions {
		f(c)
	}
	return c
}

func (c Condition) where(db *gorm.DB) *gorm.DB {
	if !c.IncludeInactive {
		db = db.Where("active = ?", true)
	}

	if c.Search != "" {
		pattern := "%" + strings.ToLower(c.Search) + "%"
		db = db.Where(
			"(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(deity) LIKE ? OR LOWER(locality) LIKE ? OR LOWER(city) LIKE ?)",
			pattern, pattern, pattern, pattern, pattern,
		)
	}

	if c.City != "" {
		db = db.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(c.City)+"%")
	}
	if c.State != "" {
		db = db.Where("LOWER(state) LIKE ?", "%"+strings.ToLower(c.State)+"%")
	}
	if c.Category != "" {
		db = db.Where("category = ?", c.Category)
	}
	if c.Deity != "" {
		db = db.Where("LOWER(deity) LIKE ?", "%"+strings.ToLower(c.Deity)+"%")
	}
	if c.Featured != nil {
		db = db.Where("featured = ?", *c.Featured)
	}
	if c.MinRating != nil {
		db = db.Where("rating >= ?", *c.MinRating)
	}
	if c.Bounds != nil {
		db = db.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			c.Bounds.MinLat, c.Bounds.MaxLat, c.Bounds.MinLon, c.Bounds.MaxLon)
	}

	return db
}

func (c Condition) orderBy(db *gorm.DB) *gorm.DB {
	col, desc := "name", false
	if c.sortBy != "" {
		col, desc = c.sortBy, c.sortOrder == "DESC"
	}

	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc})
	if col != "id" {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	return db
}

func (c Condition) offsetLimit(db *gorm.DB) (*gorm.DB, int, int) {
	offset, limit := 0, 0

	if c.offset != nil && *c.offset > 0 {
		offset = *c.offset
		db = db.Offset(offset)
	}
	if c.limit != nil && *c.limit > 0 {
		limit = *c.limit
		db = db.Limit(limit)
	}

	return db, offset, limit
}
