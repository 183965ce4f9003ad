package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "notes.service.new"
	opCreateNote  = "notes.create"
	opGetNote     = "notes.get"
	opListNotes   = "notes.list"
	opUpdateNote  = "notes.update"
	opDeleteNote  = "notes.delete"
	opDailyCounts = "notes.daily_counts"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig bundles the dependencies of the notes service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	PageSize   int
	Logger     *zap.Logger
}

// IDProvider issues identifiers for newly created notes.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider returns an IDProvider that mints time-ordered (v7)
// UUID strings, keeping note identifiers roughly creation-sorted.
func NewUUIDProvider() IDProvider {
	return uuidProvider{}
}

func (uuidProvider) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Service owns all reads and writes against the notes table.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	pageSize   int
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

// PageSize exposes the fixed page size applied by List.
func (s *Service) PageSize() int {
	return s.pageSize
}

// Create validates the draft and persists a new note.
func (s *Service) Create(ctx context.Context, draft Draft) (Note, error) {
	if err := draft.validate(); err != nil {
		return Note{}, err
	}

	noteID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateNote, "id_generation_failed", err)
		return Note{}, newServiceError(opCreateNote, "id_generation_failed", err)
	}

	priority := DefaultPriority
	if draft.Priority != nil {
		priority = *draft.Priority
	}

	now := s.clock().UTC()
	note := Note{
		ID:        noteID,
		Title:     draft.Title,
		Content:   draft.Content,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		s.logError(opCreateNote, "insert_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opCreateNote, "insert_failed", err)
	}

	return note, nil
}

// Get returns the note for the provided identifier.
func (s *Service) Get(ctx context.Context, noteID string) (Note, error) {
	var note Note
	err := s.db.WithContext(ctx).Where("id = ?", noteID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGetNote, "query_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opGetNote, "query_failed", err)
	}
	return note, nil
}

// orderings maps the client-facing ordering fields to their columns.
var orderings = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "priority",
}

// List returns one fixed-size page of notes matching the query.
func (s *Service) List(ctx context.Context, query ListQuery) (Page, error) {
	page := query.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return Page{}, ErrInvalidPage
	}

	scoped := s.db.WithContext(ctx).Model(&Note{})
	if query.Priority != nil {
		scoped = scoped.Where("priority = ?", *query.Priority)
	}
	if term := strings.TrimSpace(query.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		scoped = scoped.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern)
	}

	var count int64
	if err := scoped.Count(&count).Error; err != nil {
		s.logError(opListNotes, "count_failed", err)
		return Page{}, newServiceError(opListNotes, "count_failed", err)
	}

	totalPages := int((count + int64(s.pageSize) - 1) / int64(s.pageSize))
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		return Page{}, ErrInvalidPage
	}

	var results []Note
	err := scoped.
		Order(orderClause(query.Ordering)).
		Limit(s.pageSize).
		Offset((page - 1) * s.pageSize).
		Find(&results).Error
	if err != nil {
		s.logError(opListNotes, "query_failed", err)
		return Page{}, newServiceError(opListNotes, "query_failed", err)
	}
	if results == nil {
		results = []Note{}
	}

	return Page{
		Count:      count,
		Number:     page,
		TotalPages: totalPages,
		Notes:      results,
	}, nil
}

// orderClause translates a client ordering value into an ORDER BY clause.
// Unknown fields fall back to the default newest-first ordering.
func orderClause(ordering string) string {
	field := strings.TrimSpace(ordering)
	direction := "ASC"
	if strings.HasPrefix(field, "-") {
		field = strings.TrimPrefix(field, "-")
		direction = "DESC"
	}
	column, ok := orderings[field]
	if !ok {
		return "created_at DESC"
	}
	return column + " " + direction
}

// Update applies a partial or full patch to an existing note and bumps
// its updated_at timestamp. Concurrent updates resolve last-write-wins.
func (s *Service) Update(ctx context.Context, noteID string, patch Patch) (Note, error) {
	// Existence is checked first so an unknown note reports not-found
	// even when the patch itself is invalid.
	note, err := s.Get(ctx, noteID)
	if err != nil {
		return Note{}, err
	}

	if err := patch.validate(); err != nil {
		return Note{}, err
	}

	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.Priority != nil {
		note.Priority = *patch.Priority
	}
	note.UpdatedAt = s.clock().UTC()

	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		s.logError(opUpdateNote, "save_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opUpdateNote, "save_failed", err)
	}

	return note, nil
}

// Delete removes the note permanently. Deleting an unknown note fails,
// so a second delete of the same identifier reports ErrNotFound.
func (s *Service) Delete(ctx context.Context, noteID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", noteID).Delete(&Note{})
	if result.Error != nil {
		s.logError(opDeleteNote, "delete_failed", result.Error, zap.String("note_id", noteID))
		return newServiceError(opDeleteNote, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("notes service error", attrs...)
}
