package drive

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	fileListFields   = "files(id, name, mimeType, owners, webViewLink, createdTime, modifiedTime)"
	fileGetFields    = "id, name, owners, permissions(id, type, role, emailAddress, pendingOwner)"
	permissionFields = "id, type, role, emailAddress, pendingOwner"
)

// Client wraps the Google Drive API service
type Client struct {
	service *drive.Service
}

// NewClient creates a Drive client that sends requests through httpClient,
// which must already carry OAuth2 credentials. Extra options are appended
// after the HTTP client (tests use option.WithEndpoint).
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	allOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := drive.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &Client{service: service}, nil
}

// AboutUser returns the account the client is authenticated as.
func (c *Client) AboutUser(ctx context.Context) (*User, error) {
	about, err := c.service.About.Get().
		Context(ctx).
		Fields("user").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	if about.User == nil {
		return nil, fmt.Errorf("failed to get account info: response has no user")
	}

	return &User{
		DisplayName:  about.User.DisplayName,
		EmailAddress: about.User.EmailAddress,
	}, nil
}

// ListFiles lists files in Google Drive with optional filtering
func (c *Client) ListFiles(ctx context.Context, options *ListOptions) ([]*FileInfo, error) {
	call := c.service.Files.List().
		Context(ctx).
		Fields(fileListFields)

	userQuery := ""
	includeTrashed := false
	if options != nil {
		userQuery = options.Query
		includeTrashed = options.IncludeTrashed
		if options.MaxResults > 0 {
			call = call.PageSize(int64(options.MaxResults))
		}
		if options.OrderBy != "" {
			call = call.OrderBy(options.OrderBy)
		}
	}
	if q := buildListFilesQuery(userQuery, includeTrashed); q != "" {
		call = call.Q(q)
	}

	fileList, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]*FileInfo, len(fileList.Files))
	for i, f := range fileList.Files {
		files[i] = convertToFileInfo(f)
	}

	return files, nil
}

// GetFile retrieves id, name, owners and permissions for a file
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}

	file, err := c.service.Files.Get(fileID).
		Context(ctx).
		Fields(fileGetFields).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	return convertToFileInfo(file), nil
}

// ShareFile creates a permission on a file
func (c *Client) ShareFile(ctx context.Context, fileID string, options *ShareOptions) (*Permission, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}
	if options == nil {
		return nil, fmt.Errorf("share options are required")
	}
	if options.Type == "" {
		return nil, fmt.Errorf("permission type is required")
	}
	if options.Role == "" {
		return nil, fmt.Errorf("permission role is required")
	}

	permission := &drive.Permission{
		Type:         options.Type,
		Role:         options.Role,
		EmailAddress: options.EmailAddress,
	}

	drivePermission, err := c.service.Permissions.Create(fileID, permission).
		Context(ctx).
		Fields(permissionFields).
		SendNotificationEmail(options.SendNotificationEmail).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to share file: %w", err)
	}

	return convertToPermission(drivePermission), nil
}

// ListPermissions lists all permissions for a file
func (c *Client) ListPermissions(ctx context.Context, fileID string) ([]*Permission, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}

	permList, err := c.service.Permissions.List(fileID).
		Context(ctx).
		Fields("permissions(" + permissionFields + ")").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}

	permissions := make([]*Permission, len(permList.Permissions))
	for i, p := range permList.Permissions {
		permissions[i] = convertToPermission(p)
	}

	return permissions, nil
}

// SetPendingOwner marks a writer permission as the pending owner of a file.
// The grantee keeps the writer role until they accept.
func (c *Client) SetPendingOwner(ctx context.Context, fileID, permissionID string) (*Permission, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}
	if permissionID == "" {
		return nil, fmt.Errorf("permissionID is required")
	}

	update := &drive.Permission{
		Role:         RoleWriter,
		PendingOwner: true,
	}

	drivePermission, err := c.service.Permissions.Update(fileID, permissionID, update).
		Context(ctx).
		Fields(permissionFields).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to set pending owner: %w", err)
	}

	return convertToPermission(drivePermission), nil
}

// RemovePermission removes a permission from a file
func (c *Client) RemovePermission(ctx context.Context, fileID, permissionID string) error {
	if fileID == "" {
		return fmt.Errorf("fileID is required")
	}
	if permissionID == "" {
		return fmt.Errorf("permissionID is required")
	}

	err := c.service.Permissions.Delete(fileID, permissionID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to remove permission: %w", err)
	}

	return nil
}

// buildListFilesQuery combines a caller query with the trashed filter.
func buildListFilesQuery(userQuery string, includeTrashed bool) string {
	switch {
	case includeTrashed:
		return userQuery
	case userQuery == "":
		return "trashed=false"
	default:
		return "(" + userQuery + ") and trashed=false"
	}
}

// escapeQueryValue escapes a value for use inside a single-quoted Drive query string.
func escapeQueryValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// convertToFileInfo converts a Drive API File to our FileInfo type
func convertToFileInfo(f *drive.File) *FileInfo {
	fileInfo := &FileInfo{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		WebViewLink: f.WebViewLink,
	}

	if f.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			fileInfo.CreatedTime = t
		}
	}
	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			fileInfo.ModifiedTime = t
		}
	}

	for _, owner := range f.Owners {
		fileInfo.Owners = append(fileInfo.Owners, User{
			DisplayName:  owner.DisplayName,
			EmailAddress: owner.EmailAddress,
		})
	}

	for _, perm := range f.Permissions {
		fileInfo.Permissions = append(fileInfo.Permissions, *convertToPermission(perm))
	}

	return fileInfo
}

// convertToPermission converts a Drive API Permission to our Permission type
func convertToPermission(p *drive.Permission) *Permission {
	return &Permission{
		ID:           p.Id,
		Type:         p.Type,
		Role:         p.Role,
		EmailAddress: p.EmailAddress,
		PendingOwner: p.PendingOwner,
	}
}
