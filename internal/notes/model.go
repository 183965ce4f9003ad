package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxTitleLength = 200

	// DefaultPriority is assigned when a create payload omits priority.
	DefaultPriority = 3
	// PriorityHighest and PriorityLowest bound the accepted priority range.
	PriorityHighest = 1
	PriorityLowest  = 5

	// DefaultPageSize matches the fixed page size exposed by the list endpoint.
	DefaultPageSize = 6
)

var (
	// ErrValidation indicates a create or update payload failed field validation.
	ErrValidation = errors.New("notes: invalid input")
	// ErrNotFound indicates no note exists for the requested identifier.
	ErrNotFound = errors.New("notes: note not found")
	// ErrInvalidPage indicates the requested page is outside the result range.
	ErrInvalidPage = errors.New("notes: invalid page")
)

// Note is the persisted note record.
type Note struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	Title     string    `gorm:"column:title;size:200;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null;default:''" json:"content"`
	Priority  int       `gorm:"column:priority;not null;default:3;index" json:"priority"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// Draft carries the fields accepted when creating a note.
type Draft struct {
	Title    string
	Content  string
	Priority *int
}

func (d Draft) validate() error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if d.Priority != nil {
		return validatePriority(*d.Priority)
	}
	return nil
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Title    *string
	Content  *string
	Priority *int
}

func (p Patch) validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Priority != nil {
		return validatePriority(*p.Priority)
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLength)
	}
	return nil
}

func validatePriority(priority int) error {
	if priority < PriorityHighest || priority > PriorityLowest {
		return fmt.Errorf("%w: priority must be between %d and %d", ErrValidation, PriorityHighest, PriorityLowest)
	}
	return nil
}

// ListQuery describes the filter, search, ordering and page of a list request.
type ListQuery struct {
	Priority *int
	Search   string
	Ordering string
	Page     int
}

// Page bundles one page of list results with the total match count.
type Page struct {
	Count      int64
	Number     int
	TotalPages int
	Notes      []Note
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool {
	return p.Number < p.TotalPages
}

// HasPrevious reports whether an earlier page exists.
func (p Page) HasPrevious() bool {
	return p.Number > 1
}

// DailyCount is one entry of the daily report: a calendar date and the
// number of notes created on it.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
