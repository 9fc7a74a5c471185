// Package testutil provides an in-process fake of the Google OAuth2 token
// endpoint and the parts of the Drive v3 REST API drivetransfer uses.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Routes the fake serves. They are also the keys for FailWith and Calls.
const (
	RouteAbout            = "GET /about"
	RouteListFiles        = "GET /files"
	RouteGetFile          = "GET /files/{fileId}"
	RouteCreatePermission = "POST /files/{fileId}/permissions"
	RouteListPermissions  = "GET /files/{fileId}/permissions"
	RouteUpdatePermission = "PATCH /files/{fileId}/permissions/{permissionId}"
	RouteDeletePermission = "DELETE /files/{fileId}/permissions/{permissionId}"
	RouteToken            = "POST /token"
)

const drivePrefix = "/drive/v3"

// FakeGoogle is a running fake. All methods are safe for concurrent use.
type FakeGoogle struct {
	server *httptest.Server

	mu sync.Mutex

	about     *drive.User
	files     map[string]*drive.File
	listFiles []*drive.File
	failures  map[string]int
	hideGrant bool

	// codes maps accepted authorization codes to the access token issued.
	codes        map[string]string
	refreshToken string
	refreshed    string

	calls       []string
	authHeaders []string
	listQueries []url.Values
	created     []*drive.Permission
	createQuery url.Values
	updated     map[string]*drive.Permission
	deleted     []string
	nextID      int
}

// NewFakeGoogle starts a fake that is shut down when the test ends.
func NewFakeGoogle(t testing.TB) *FakeGoogle {
	t.Helper()

	f := &FakeGoogle{
		files:        make(map[string]*drive.File),
		failures:     make(map[string]int),
		codes:        make(map[string]string),
		updated:      make(map[string]*drive.Permission),
		refreshToken: "refresh-token",
	}

	mux := http.NewServeMux()
	f.handle(mux, RouteAbout, f.getAbout)
	f.handle(mux, RouteListFiles, f.listFilesHandler)
	f.handle(mux, RouteGetFile, f.getFile)
	f.handle(mux, RouteCreatePermission, f.createPermission)
	f.handle(mux, RouteListPermissions, f.listPermissions)
	f.handle(mux, RouteUpdatePermission, f.updatePermission)
	f.handle(mux, RouteDeletePermission, f.deletePermission)
	f.handle(mux, RouteToken, f.token)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL of the fake.
func (f *FakeGoogle) URL() string {
	return f.server.URL
}

// HTTPClient returns a client for talking to the fake directly.
func (f *FakeGoogle) HTTPClient() *http.Client {
	return f.server.Client()
}

// DriveEndpoint is the Drive API base path, for option.WithEndpoint.
func (f *FakeGoogle) DriveEndpoint() string {
	return f.server.URL + drivePrefix + "/"
}

// DriveOptions points a Drive service at the fake.
func (f *FakeGoogle) DriveOptions() []option.ClientOption {
	return []option.ClientOption{option.WithEndpoint(f.DriveEndpoint())}
}

// TokenURL is the fake OAuth2 token endpoint.
func (f *FakeGoogle) TokenURL() string {
	return f.server.URL + "/token"
}

// CredentialsJSON returns an installed-application client secret whose token
// endpoint is the fake.
func (f *FakeGoogle) CredentialsJSON(redirectURI string) []byte {
	data, _ := json.Marshal(map[string]any{
		"installed": map[string]any{
			"client_id":     "test-client.apps.googleusercontent.com",
			"client_secret": "test-secret",
			"auth_uri":      f.server.URL + "/auth",
			"token_uri":     f.TokenURL(),
			"redirect_uris": []string{redirectURI},
		},
	})
	return data
}

// WriteCredentials writes CredentialsJSON into dir and returns its path.
func (f *FakeGoogle) WriteCredentials(t testing.TB, dir, redirectURI string) string {
	t.Helper()
	path := filepath.Join(dir, "owner_oauth.json")
	if err := os.WriteFile(path, f.CredentialsJSON(redirectURI), 0o600); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}
	return path
}

// AcceptCode makes the token endpoint exchange code for accessToken.
func (f *FakeGoogle) AcceptCode(code, accessToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = accessToken
}

// RefreshTo makes refresh grants issue accessToken.
func (f *FakeGoogle) RefreshTo(accessToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = accessToken
}

// SetAbout sets the account returned by about.get. An empty email clears it.
func (f *FakeGoogle) SetAbout(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if email == "" {
		f.about = nil
		return
	}
	f.about = &drive.User{EmailAddress: email, DisplayName: strings.Split(email, "@")[0]}
}

// AddFile makes a file available to files.get.
func (f *FakeGoogle) AddFile(file *drive.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file.Id] = file
}

// SetListedFiles sets the files.list response, in the given order.
func (f *FakeGoogle) SetListedFiles(files ...*drive.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFiles = files
}

// FailWith makes route answer with an API error of the given status.
func (f *FakeGoogle) FailWith(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = status
}

// HideGrantedPermissions leaves permissions created through the fake out of
// permission lists, like an eventually consistent backend would.
func (f *FakeGoogle) HideGrantedPermissions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideGrant = true
}

// Calls returns how often route was requested.
func (f *FakeGoogle) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == route {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of requests of any kind.
func (f *FakeGoogle) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// LastAuthorization returns the Authorization header of the latest Drive request.
func (f *FakeGoogle) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.authHeaders) == 0 {
		return ""
	}
	return f.authHeaders[len(f.authHeaders)-1]
}

// ListQueries returns the query parameters of every files.list request.
func (f *FakeGoogle) ListQueries() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.listQueries)
}

// Created returns the permissions created so far.
func (f *FakeGoogle) Created() []*drive.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.created)
}

// CreateQuery returns the query parameters of the latest permissions.create.
func (f *FakeGoogle) CreateQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createQuery
}

// Updated returns the body of the latest update to permissionID, or nil.
func (f *FakeGoogle) Updated(permissionID string) *drive.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updated[permissionID]
}

// Deleted returns the IDs of deleted permissions.
func (f *FakeGoogle) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

func (f *FakeGoogle) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	pattern := route
	if route != RouteToken {
		method, path, _ := strings.Cut(route, " ")
		pattern = method + " " + drivePrefix + path
	}

	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, route)
		if route != RouteToken {
			f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		}
		status, fail := f.failures[route]
		f.mu.Unlock()

		if fail {
			writeAPIError(w, status, fmt.Sprintf("fake failure for %s", route))
			return
		}
		h(w, r)
	})
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request")
		return
	}

	f.mu.Lock()
	var access string
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		access = f.codes[r.PostForm.Get("code")]
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == f.refreshToken {
			access = f.refreshed
		}
	}
	refresh := f.refreshToken
	f.mu.Unlock()

	if access == "" {
		writeOAuthError(w, "invalid_grant")
		return
	}

	writeJSON(w, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func writeOAuthError(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": "Bad Request",
	})
}

func (f *FakeGoogle) getAbout(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	about := &drive.About{User: f.about}
	f.mu.Unlock()
	writeJSON(w, about)
}

func (f *FakeGoogle) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.listQueries = append(f.listQueries, r.URL.Query())
	list := &drive.FileList{Files: f.listFiles}
	f.mu.Unlock()

	writeJSON(w, list)
}

func (f *FakeGoogle) getFile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	file, ok := f.files[r.PathValue("fileId")]
	f.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, file)
}

func (f *FakeGoogle) createPermission(w http.ResponseWriter, r *http.Request) {
	var perm drive.Permission
	if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	f.nextID++
	perm.Id = fmt.Sprintf("perm-%d", f.nextID)
	f.created = append(f.created, &perm)
	f.createQuery = r.URL.Query()
	f.mu.Unlock()

	writeJSON(w, &perm)
}

func (f *FakeGoogle) listPermissions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var perms []*drive.Permission
	if file, ok := f.files[r.PathValue("fileId")]; ok {
		perms = append(perms, file.Permissions...)
	}
	if !f.hideGrant {
		for _, p := range f.created {
			if !slices.Contains(f.deleted, p.Id) {
				perms = append(perms, p)
			}
		}
	}
	writeJSON(w, &drive.PermissionList{Permissions: perms})
}

func (f *FakeGoogle) updatePermission(w http.ResponseWriter, r *http.Request) {
	var perm drive.Permission
	if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	perm.Id = r.PathValue("permissionId")

	f.mu.Lock()
	f.updated[perm.Id] = &perm
	f.mu.Unlock()

	writeJSON(w, &perm)
}

func (f *FakeGoogle) deletePermission(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.deleted = append(f.deleted, r.PathValue("permissionId"))
	f.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
