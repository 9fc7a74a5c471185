package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/drivetransfer/internal/drive"
	"github.com/teemow/drivetransfer/internal/session"
)

type fakeAuth struct {
	user        session.User
	url         string
	urlErr      error
	email       string
	completeErr error
	resetErr    error

	codes  []string
	resets int
}

func (f *fakeAuth) CurrentUser() session.User { return f.user }

func (f *fakeAuth) AuthorizationURL() (string, error) { return f.url, f.urlErr }

func (f *fakeAuth) CompleteAuthorization(_ context.Context, code string) (string, error) {
	f.codes = append(f.codes, code)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.email, nil
}

func (f *fakeAuth) Reset(context.Context) error {
	f.resets++
	return f.resetErr
}

type transferCall struct {
	fileID, receiver string
}

type fakeDocuments struct {
	files       []drive.FileSummary
	listErr     error
	result      *drive.TransferResult
	transferErr error

	searches  []string
	transfers []transferCall
}

func (f *fakeDocuments) ListOwnDocuments(_ context.Context, search string) ([]drive.FileSummary, error) {
	f.searches = append(f.searches, search)
	return f.files, f.listErr
}

func (f *fakeDocuments) TransferOwnership(_ context.Context, fileID, receiver string) (*drive.TransferResult, error) {
	f.transfers = append(f.transfers, transferCall{fileID, receiver})
	return f.result, f.transferErr
}

func newTestApp(auth *fakeAuth, docs *fakeDocuments) http.Handler {
	return NewApp(AppConfig{Auth: auth, Documents: docs}).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAuthStatus(t *testing.T) {
	tests := []struct {
		name string
		user session.User
		want string
	}{
		{
			name: "signed out",
			want: `{"authenticated":false,"email":null}`,
		},
		{
			name: "signed in",
			user: session.User{Authenticated: true, Email: "alice@example.com"},
			want: `{"authenticated":true,"email":"alice@example.com"}`,
		},
		{
			name: "signed in without a resolved email",
			user: session.User{Authenticated: true},
			want: `{"authenticated":true,"email":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestApp(&fakeAuth{user: tt.user}, &fakeDocuments{})

			rec := do(t, h, http.MethodGet, "/api/auth-status", "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestAuthURL(t *testing.T) {
	h := newTestApp(&fakeAuth{url: "https://accounts.example/auth?x=1"}, &fakeDocuments{})

	rec := do(t, h, http.MethodGet, "/api/auth-url", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://accounts.example/auth?x=1"}`, rec.Body.String())
}

func TestAuthURL_Error(t *testing.T) {
	h := newTestApp(&fakeAuth{urlErr: session.ErrNotInitialized}, &fakeDocuments{})

	rec := do(t, h, http.MethodGet, "/api/auth-url", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestOAuthCallback(t *testing.T) {
	auth := &fakeAuth{email: "alice@example.com"}
	h := newTestApp(auth, &fakeDocuments{})

	rec := do(t, h, http.MethodPost, "/api/oauth-callback", `{"code":"abc"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"✅ Authentication successful!","userEmail":"alice@example.com"}`, rec.Body.String())
	assert.Equal(t, []string{"abc"}, auth.codes)
}

func TestOAuthCallback_Failure(t *testing.T) {
	auth := &fakeAuth{completeErr: fmt.Errorf("%w: invalid_grant", session.ErrAuthentication)}
	h := newTestApp(auth, &fakeDocuments{})

	rec := do(t, h, http.MethodPost, "/api/oauth-callback", `{"code":"bad"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"❌ Authentication failed: invalid_grant"}`, rec.Body.String())
}

func TestOAuthCallback_MissingCodeReachesSession(t *testing.T) {
	auth := &fakeAuth{completeErr: session.ErrMissingCode}
	h := newTestApp(auth, &fakeDocuments{})

	rec := do(t, h, http.MethodPost, "/api/oauth-callback", `{}`)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "❌ Authentication failed: authorization code is required", body["message"])
}

func TestResetAuth(t *testing.T) {
	auth := &fakeAuth{user: session.User{Authenticated: true}}
	h := newTestApp(auth, &fakeDocuments{})

	rec := do(t, h, http.MethodPost, "/api/reset-auth", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"✅ Signed out successfully!"}`, rec.Body.String())
	assert.Equal(t, 1, auth.resets)
}

func TestResetAuth_Failure(t *testing.T) {
	h := newTestApp(&fakeAuth{resetErr: errors.New("permission denied")}, &fakeDocuments{})

	rec := do(t, h, http.MethodPost, "/api/reset-auth", "")

	assert.JSONEq(t, `{"success":false,"message":"❌ Sign out failed: permission denied"}`, rec.Body.String())
}

func TestMyFiles(t *testing.T) {
	docs := &fakeDocuments{files: []drive.FileSummary{{
		ID:          "F1",
		Name:        "Budget",
		Type:        "Google Sheet",
		Owner:       "alice@example.com",
		URL:         "https://docs.google.com/F1",
		Created:     "2024-01-02",
		Modified:    "2024-03-04",
		IsOwnedByMe: true,
	}}}
	h := newTestApp(&fakeAuth{}, docs)

	rec := do(t, h, http.MethodGet, "/api/my-files?search=Bud", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"files":[{
		"id":"F1","name":"Budget","type":"Google Sheet","owner":"alice@example.com",
		"url":"https://docs.google.com/F1","created":"2024-01-02","modified":"2024-03-04",
		"isOwnedByMe":true}]}`, rec.Body.String())
	assert.Equal(t, []string{"Bud"}, docs.searches)
}

func TestMyFiles_Empty(t *testing.T) {
	h := newTestApp(&fakeAuth{}, &fakeDocuments{})

	rec := do(t, h, http.MethodGet, "/api/my-files", "")

	assert.JSONEq(t, `{"success":true,"files":[]}`, rec.Body.String())
}

func TestMyFiles_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not authenticated",
			err:  drive.ErrNotAuthenticated,
			want: "Not authenticated",
		},
		{
			name: "retrieval",
			err:  fmt.Errorf("%w: %w", drive.ErrRetrieval, errors.New("googleapi: Error 500: boom")),
			want: "Failed to get files: googleapi: Error 500: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestApp(&fakeAuth{}, &fakeDocuments{listErr: tt.err})

			rec := do(t, h, http.MethodGet, "/api/my-files", "")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, map[string]any{"success": false, "message": tt.want}, decodeBody(t, rec))
		})
	}
}

func TestTransfer(t *testing.T) {
	docs := &fakeDocuments{result: &drive.TransferResult{
		File:     "Budget",
		Receiver: "bob@example.com",
		Status:   drive.TransferStatusPendingOwner,
		Note:     drive.TransferNote,
	}}
	h := newTestApp(&fakeAuth{}, docs)

	rec := do(t, h, http.MethodPost, "/api/transfer", `{"fileId":"F1","receiverEmail":" bob@example.com "}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"✅ Ownership transfer initiated!","details":{
		"file":"Budget","receiver":"bob@example.com","status":"pending_owner",
		"note":"Receiver needs to accept ownership in their Google Drive"}}`, rec.Body.String())
	assert.Equal(t, []transferCall{{"F1", "bob@example.com"}}, docs.transfers)
}

func TestTransfer_MissingFields(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"fileId":"F1"}`,
		`{"receiverEmail":"bob@example.com"}`,
		`{"fileId":"  ","receiverEmail":"bob@example.com"}`,
		`{"fileId":"F1","receiverEmail":""}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			docs := &fakeDocuments{}
			h := newTestApp(&fakeAuth{}, docs)

			rec := do(t, h, http.MethodPost, "/api/transfer", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"success":false,"message":"File ID and receiver email are required"}`, rec.Body.String())
			assert.Empty(t, docs.transfers, "gateway must not be called")
		})
	}
}

func TestTransfer_Failures(t *testing.T) {
	ownership := &drive.TransferError{
		Step: drive.StepVerifyOwner,
		Err:  &drive.OwnershipError{Owner: "carol@example.com", Caller: "alice@example.com"},
	}
	notFound := &drive.TransferError{
		Step: drive.StepLocatePermission,
		Err:  drive.ErrPermissionNotFound,
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not owner",
			err:  ownership,
			want: "You don't own this file. Current owner: carol@example.com. You are signed in as: alice@example.com",
		},
		{
			name: "permission not found",
			err:  notFound,
			want: "Could not find writer permission for receiver",
		},
		{
			name: "not authenticated",
			err:  drive.ErrNotAuthenticated,
			want: "Not authenticated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestApp(&fakeAuth{}, &fakeDocuments{transferErr: tt.err})

			rec := do(t, h, http.MethodPost, "/api/transfer", `{"fileId":"F1","receiverEmail":"bob@example.com"}`)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, map[string]any{"success": false, "message": tt.want}, decodeBody(t, rec))
		})
	}
}

func TestMalformedBodies(t *testing.T) {
	for _, target := range []string{"/api/transfer", "/api/oauth-callback"} {
		t.Run(target, func(t *testing.T) {
			auth := &fakeAuth{}
			docs := &fakeDocuments{}
			h := newTestApp(auth, docs)

			rec := do(t, h, http.MethodPost, target, `{"fileId":`)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, decodeBody(t, rec)["success"])
			assert.Empty(t, auth.codes)
			assert.Empty(t, docs.transfers)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestApp(&fakeAuth{}, &fakeDocuments{})

	rec := do(t, h, http.MethodGet, "/api/transfer", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Drive Transfer</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))

	h := NewApp(AppConfig{Auth: &fakeAuth{}, Documents: &fakeDocuments{}, PublicDir: dir}).Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Drive Transfer")

	rec = do(t, h, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/missing.css", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	health := NewHealthChecker(&fakeAuth{user: session.User{Authenticated: true}})
	h := NewApp(AppConfig{Auth: &fakeAuth{}, Documents: &fakeDocuments{}, Health: health, PublicDir: t.TempDir()}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "").Code)

	health.MarkReady()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)

	health.BeginShutdown()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "").Code)
}
