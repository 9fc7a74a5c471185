package drive

import "time"

// FileInfo represents metadata about a file in Google Drive.
type FileInfo struct {
	// ID is the unique identifier for the file
	ID string `json:"id"`

	// Name is the name of the file
	Name string `json:"name"`

	// MimeType is the MIME type of the file
	MimeType string `json:"mimeType"`

	// CreatedTime is when the file was created
	CreatedTime time.Time `json:"createdTime"`

	// ModifiedTime is when the file was last modified
	ModifiedTime time.Time `json:"modifiedTime"`

	// WebViewLink is a link for opening the file in the relevant Google editor
	WebViewLink string `json:"webViewLink,omitempty"`

	// Owners are the owners of the file. Drive lists the current owner first.
	Owners []User `json:"owners,omitempty"`

	// Permissions are the access permissions for the file (only populated when requested)
	Permissions []Permission `json:"permissions,omitempty"`
}

// OwnerEmail returns the email of the first listed owner, or "" if none.
func (f *FileInfo) OwnerEmail() string {
	if len(f.Owners) == 0 {
		return ""
	}
	return f.Owners[0].EmailAddress
}

// User represents a Google Drive user (owner, permission holder, etc.)
type User struct {
	// DisplayName is the display name of the user
	DisplayName string `json:"displayName"`

	// EmailAddress is the email address of the user
	EmailAddress string `json:"emailAddress"`
}

// Permission represents access permissions for a file
type Permission struct {
	// ID is the unique identifier for the permission
	ID string `json:"id"`

	// Type is the type of grantee (user, group, domain, anyone)
	Type string `json:"type"`

	// Role is the role granted by this permission (owner, writer, commenter, reader, ...)
	Role string `json:"role"`

	// EmailAddress is the email address of the user or group
	EmailAddress string `json:"emailAddress,omitempty"`

	// PendingOwner is true while an ownership transfer to this grantee awaits acceptance
	PendingOwner bool `json:"pendingOwner,omitempty"`
}

// ListOptions contains options for listing files
type ListOptions struct {
	// Query filters the results using Drive's query language.
	// See https://developers.google.com/drive/api/guides/search-files
	Query string

	// MaxResults is the server-side page size (max: 1000)
	MaxResults int

	// OrderBy specifies the sort order, e.g. "modifiedTime desc"
	OrderBy string

	// IncludeTrashed includes trashed files in results
	IncludeTrashed bool
}

// ShareOptions contains options for granting a permission on a file
type ShareOptions struct {
	// Type is the type of grantee: "user", "group", "domain", or "anyone"
	Type string

	// Role is the role to grant, e.g. "writer"
	Role string

	// EmailAddress is the grantee email (required if Type is "user" or "group")
	EmailAddress string

	// SendNotificationEmail asks Drive to email the grantee
	SendNotificationEmail bool
}

// FileSummary is the listing entry returned to the browser.
type FileSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Owner       string `json:"owner"`
	URL         string `json:"url"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	IsOwnedByMe bool   `json:"isOwnedByMe"`
}

// TransferResult describes an initiated ownership transfer.
type TransferResult struct {
	File     string `json:"file"`
	Receiver string `json:"receiver"`
	Status   string `json:"status"`
	Note     string `json:"note"`
}
