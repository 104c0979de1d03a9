package todo

import (
	"time"
)

// Todo represents a single task item
type Todo struct {
	ID        int        `json:"id"`
	Text      string     `json:"text"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Stats summarizes completion across all todos
type Stats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completion_rate"`
}

// Patch holds the fields of an update keyed by their JSON names.
// Keys other than "text" and "completed" are ignored; absent keys leave
// the stored value untouched.
type Patch map[string]interface{}

// Text returns the raw text value and whether it was supplied
func (p Patch) Text() (interface{}, bool) {
	v, ok := p["text"]
	return v, ok
}

// Completed returns the raw completed value and whether it was supplied
func (p Patch) Completed() (interface{}, bool) {
	v, ok := p["completed"]
	return v, ok
}

// ChangeKind identifies a mutation for notifiers
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)
