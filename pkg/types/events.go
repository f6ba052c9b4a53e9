package types

import "time"

type TempleCreated struct {
	TempleID  string    `json:"templeID"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *TempleCreated) ContentType() string {
	return "application/json"
}
func (t *TempleCreated) TopicName() string {
	return "temple.created"
}

type TempleUpdated struct {
	TempleID  string    `json:"templeID"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *TempleUpdated) ContentType() string {
	return "application/json"
}
func (t *TempleUpdated) TopicName() string {
	return "temple.updated"
}

type TempleDeleted struct {
	TempleID  string    `json:"templeID"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *TempleDeleted) ContentType() string {
	return "application/json"
}
func (t *TempleDeleted) TopicName() string {
	return "temple.deleted"
}

type ReviewAdded struct {
	ReviewID    string    `json:"reviewID"`
	TempleID    string    `json:"templeID"`
	Rating      int       `json:"rating"`
	TempleScore float64   `json:"templeRating"`
	Timestamp   time.Time `json:"timestamp"`
}

func (r *ReviewAdded) ContentType() string {
	return "application/json"
}
func (r *ReviewAdded) TopicName() string {
	return "review.added"
}
