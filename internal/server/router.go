package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/nimbus/internal/auth"
	"github.com/MarcoPoloResearchLab/nimbus/internal/github"
	"github.com/MarcoPoloResearchLab/nimbus/internal/notes"
	"github.com/MarcoPoloResearchLab/nimbus/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "nimbus_user_id"

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingCredentialStore = errors.New("credential store dependency required")
	errMissingNotesService    = errors.New("notes service dependency required")
	errMissingGitHubClient    = errors.New("github client dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// TokenManager issues, refreshes and validates token pairs.
type TokenManager interface {
	IssuePair(ctx context.Context, subject string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	ValidateAccess(token string) (string, error)
}

// CredentialStore verifies username/password pairs.
type CredentialStore interface {
	Authenticate(ctx context.Context, username, password string) (users.Account, error)
}

// GitHubClient performs external user lookups.
type GitHubClient interface {
	LookupUser(ctx context.Context, username string) (github.LookupResult, error)
}

// Dependencies bundles everything the HTTP handler needs.
type Dependencies struct {
	TokenManager TokenManager
	Accounts     CredentialStore
	NotesService *notes.Service
	GitHub       GitHubClient
	Logger       *zap.Logger
}

// NewHTTPHandler wires middleware and routes and returns the root handler.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Accounts == nil {
		return nil, errMissingCredentialStore
	}
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}
	if deps.GitHub == nil {
		return nil, errMissingGitHubClient
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := newRequestMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch,
			http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(metrics.middleware())

	handler := &httpHandler{
		tokens:       deps.TokenManager,
		accounts:     deps.Accounts,
		notesService: deps.NotesService,
		github:       deps.GitHub,
		logger:       logger,
	}

	router.POST("/auth/token/", handler.handleIssueToken)
	router.POST("/auth/token/refresh/", handler.handleRefreshToken)
	router.GET("/metrics", gin.WrapH(metrics.handler()))

	// Resource routes authenticate a bearer token when one is present but
	// allow anonymous requests through. Collection and detail paths are
	// registered with and without the trailing slash.
	resources := router.Group("/")
	resources.Use(handler.authenticateRequest)
	resources.GET("/notes", handler.handleListNotes)
	resources.GET("/notes/", handler.handleListNotes)
	resources.POST("/notes", handler.handleCreateNote)
	resources.POST("/notes/", handler.handleCreateNote)
	resources.GET("/notes/:id", handler.handleGetNote)
	resources.GET("/notes/:id/", handler.handleGetNote)
	resources.PATCH("/notes/:id", handler.handlePatchNote)
	resources.PATCH("/notes/:id/", handler.handlePatchNote)
	resources.PUT("/notes/:id", handler.handlePutNote)
	resources.PUT("/notes/:id/", handler.handlePutNote)
	resources.DELETE("/notes/:id", handler.handleDeleteNote)
	resources.DELETE("/notes/:id/", handler.handleDeleteNote)
	resources.GET("/integration/github-user", handler.handleGitHubUser)
	resources.GET("/report/daily-notes", handler.handleDailyReport)
	resources.GET("/report/daily-notes/", handler.handleDailyReport)

	return router, nil
}

type httpHandler struct {
	tokens       TokenManager
	accounts     CredentialStore
	notesService *notes.Service
	github       GitHubClient
	logger       *zap.Logger
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPairPayload struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		if !errors.Is(err, users.ErrInvalidCredentials) {
			h.logger.Error("credential check failed", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pair, err := h.tokens.IssuePair(c.Request.Context(), account.ID)
	if err != nil {
		h.logger.Error("failed to issue token pair", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenPairPayload{Access: pair.AccessToken, Refresh: pair.RefreshToken})
}

type refreshRequestPayload struct {
	Refresh string `json:"refresh"`
}

func (h *httpHandler) handleRefreshToken(c *gin.Context) {
	var request refreshRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Refresh) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	access, err := h.tokens.Refresh(c.Request.Context(), request.Refresh)
	if err != nil {
		h.logger.Warn("refresh token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}

// notePayload uses pointers so a missing field can be told apart from an
// explicit zero value.
type notePayload struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Priority *int    `json:"priority"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.Title == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": "title is required"})
		return
	}

	draft := notes.Draft{Title: *request.Title, Priority: request.Priority}
	if request.Content != nil {
		draft.Content = *request.Content
	}

	note, err := h.notesService.Create(c.Request.Context(), draft)
	if err != nil {
		h.writeNoteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

type listResponsePayload struct {
	Count    int64        `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []notes.Note `json:"results"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	query := notes.ListQuery{
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Page:     1,
	}

	if raw := c.Query("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": "priority must be an integer"})
			return
		}
		query.Priority = &priority
	}

	if raw := c.Query("page"); raw != "" {
		// Pages are 1-based; 0 must not collide with the "no page
		// given" default.
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid_page"})
			return
		}
		query.Page = page
	}

	page, err := h.notesService.List(c.Request.Context(), query)
	if err != nil {
		h.writeNoteError(c, err)
		return
	}

	response := listResponsePayload{
		Count:   page.Count,
		Results: page.Notes,
	}
	if page.HasNext() {
		response.Next = pageURL(c, page.Number+1)
	}
	if page.HasPrevious() {
		response.Previous = pageURL(c, page.Number-1)
	}

	c.JSON(http.StatusOK, response)
}

// pageURL rebuilds the request URL with the page parameter replaced.
func pageURL(c *gin.Context, page int) *string {
	location := *c.Request.URL
	values := location.Query()
	values.Set("page", strconv.Itoa(page))
	location.RawQuery = values.Encode()

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	absolute := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     location.Path,
		RawQuery: location.RawQuery,
	}

	rendered := absolute.String()
	return &rendered
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	note, err := h.notesService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handlePatchNote(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	patch := notes.Patch{
		Title:    request.Title,
		Content:  request.Content,
		Priority: request.Priority,
	}

	note, err := h.notesService.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// handlePutNote performs a full replacement: omitted optional fields
// reset to their defaults, title stays required.
func (h *httpHandler) handlePutNote(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.Title == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": "title is required"})
		return
	}

	content := ""
	if request.Content != nil {
		content = *request.Content
	}
	priority := notes.DefaultPriority
	if request.Priority != nil {
		priority = *request.Priority
	}

	patch := notes.Patch{
		Title:    request.Title,
		Content:  &content,
		Priority: &priority,
	}

	note, err := h.notesService.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	if err := h.notesService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeNoteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleGitHubUser(c *gin.Context) {
	username := c.DefaultQuery("username", github.DefaultUsername)

	result, err := h.github.LookupUser(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Pass-through: the upstream status and body are relayed untouched,
	// including upstream error statuses such as 404.
	c.Data(result.StatusCode, "application/json; charset=utf-8", result.Body)
}

func (h *httpHandler) handleDailyReport(c *gin.Context) {
	days := notes.DefaultReportDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": "days must be an integer"})
			return
		}
		days = parsed
	}

	report, err := h.notesService.DailyCounts(c.Request.Context(), days)
	if err != nil {
		h.writeNoteError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// writeNoteError maps notes service failures onto the HTTP contract.
func (h *httpHandler) writeNoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, notes.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
	case errors.Is(err, notes.ErrInvalidPage):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_page"})
	case errors.Is(err, notes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("notes request failed", zap.Error(err))
		var serviceErr *notes.ServiceError
		if errors.As(err, &serviceErr) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "code": serviceErr.Code()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

// authenticateRequest validates a bearer token when one is supplied but
// leaves anonymous requests untouched. Resource endpoints currently
// permit anonymous access; only a present-but-invalid token is rejected.
func (h *httpHandler) authenticateRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}

	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	subject, err := h.tokens.ValidateAccess(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(userIDContextKey, subject)
	c.Next()
}
