package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/nimbus/internal/auth"
	"github.com/MarcoPoloResearchLab/nimbus/internal/github"
	"github.com/MarcoPoloResearchLab/nimbus/internal/notes"
	"github.com/MarcoPoloResearchLab/nimbus/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("note-%d", g.next), nil
}

type stubGitHub struct {
	result github.LookupResult
	err    error
}

func (s *stubGitHub) LookupUser(_ context.Context, _ string) (github.LookupResult, error) {
	if s.err != nil {
		return github.LookupResult{}, s.err
	}
	return s.result, nil
}

type testEnv struct {
	handler  http.Handler
	db       *gorm.DB
	issuer   *auth.TokenIssuer
	accounts *users.Service
	github   *stubGitHub
	clock    func() time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&notes.Note{}, &users.Account{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clock := func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "nimbus-auth",
		Audience:      "nimbus-api",
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct token issuer: %v", err)
	}

	accounts, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct accounts service: %v", err)
	}

	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct notes service: %v", err)
	}

	githubStub := &stubGitHub{result: github.LookupResult{StatusCode: http.StatusOK, Body: []byte(`{}`)}}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: issuer,
		Accounts:     accounts,
		NotesService: notesService,
		GitHub:       githubStub,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return &testEnv{
		handler:  handler,
		db:       db,
		issuer:   issuer,
		accounts: accounts,
		github:   githubStub,
		clock:    clock,
	}
}

func doJSONWithAuth(t *testing.T, handler http.Handler, method, path, body, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, http.NoBody)
	if body != "" {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", authorization)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}
