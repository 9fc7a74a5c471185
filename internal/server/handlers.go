package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teemow/drivetransfer/internal/drive"
	"github.com/teemow/drivetransfer/internal/logging"
	"github.com/teemow/drivetransfer/internal/session"
)

const (
	msgAuthSuccess      = "✅ Authentication successful!"
	msgAuthFailedPrefix = "❌ Authentication failed: "
	msgSignedOut        = "✅ Signed out successfully!"
	msgSignOutPrefix    = "❌ Sign out failed: "
	msgTransferStarted  = "✅ Ownership transfer initiated!"
	msgTransferMissing  = "File ID and receiver email are required"
	msgInvalidBody      = "Invalid request body"
)

type authStatusResponse struct {
	Authenticated bool    `json:"authenticated"`
	Email         *string `json:"email"`
}

type authURLResponse struct {
	URL string `json:"url"`
}

type messageResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserEmail string `json:"userEmail,omitempty"`
}

type filesResponse struct {
	Success bool                `json:"success"`
	Files   []drive.FileSummary `json:"files"`
}

type transferResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Details *drive.TransferResult `json:"details"`
}

type oauthCallbackRequest struct {
	Code string `json:"code"`
}

type transferRequest struct {
	FileID        string `json:"fileId"`
	ReceiverEmail string `json:"receiverEmail"`
}

func (a *App) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	user := a.auth.CurrentUser()

	resp := authStatusResponse{Authenticated: user.Authenticated}
	if user.Email != "" {
		resp.Email = &user.Email
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	authURL, err := a.auth.AuthorizationURL()
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to build authorization URL", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, authURLResponse{URL: authURL})
}

// handleOAuthCallback answers 200 for both outcomes; success is in the body.
func (a *App) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req oauthCallbackRequest
	if !a.decode(w, r, &req) {
		return
	}

	email, err := a.auth.CompleteAuthorization(r.Context(), req.Code)
	if err != nil {
		writeJSON(w, http.StatusOK, messageResponse{Message: authFailureMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Success:   true,
		Message:   msgAuthSuccess,
		UserEmail: email,
	})
}

func (a *App) handleResetAuth(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Reset(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, messageResponse{Message: msgSignOutPrefix + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msgSignedOut})
}

func (a *App) handleMyFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.documents.ListOwnDocuments(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: errorMessage(err)})
		return
	}
	if files == nil {
		files = []drive.FileSummary{}
	}
	writeJSON(w, http.StatusOK, filesResponse{Success: true, Files: files})
}

func (a *App) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !a.decode(w, r, &req) {
		return
	}

	fileID := strings.TrimSpace(req.FileID)
	receiver := strings.TrimSpace(req.ReceiverEmail)
	if fileID == "" || receiver == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgTransferMissing})
		return
	}

	result, err := a.documents.TransferOwnership(r.Context(), fileID, receiver)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: errorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{
		Success: true,
		Message: msgTransferStarted,
		Details: result,
	})
}

// decode reads a JSON body into v. On failure it writes a 400 and returns false.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		a.logger.DebugContext(r.Context(), "rejecting malformed request body", logging.Err(err))
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgInvalidBody})
		return false
	}
	return true
}

// errorMessage renders err for the browser. Messages built on the drive
// sentinels start with a capital letter there, as the front-end shows them
// verbatim.
func errorMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, drive.ErrNotAuthenticated) ||
		errors.Is(err, drive.ErrRetrieval) ||
		errors.Is(err, drive.ErrPermissionNotFound) {
		r, size := utf8.DecodeRuneInString(msg)
		return string(unicode.ToUpper(r)) + msg[size:]
	}
	return msg
}

// authFailureMessage drops the session's own prefix so the cause follows
// msgAuthFailedPrefix directly.
func authFailureMessage(err error) string {
	cause := strings.TrimPrefix(err.Error(), session.ErrAuthentication.Error()+": ")
	return msgAuthFailedPrefix + cause
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
