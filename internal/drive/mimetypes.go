package drive

// Google-native MIME types
const (
	MimeTypeDocument     = "application/vnd.google-apps.document"
	MimeTypeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypePresentation = "application/vnd.google-apps.presentation"
	MimeTypeForm         = "application/vnd.google-apps.form"
	MimeTypeDrawing      = "application/vnd.google-apps.drawing"
)

// NativeDocumentTypes lists the MIME types ListOwnDocuments returns, in the
// order they appear in the query.
var NativeDocumentTypes = []string{
	MimeTypeDocument,
	MimeTypeSpreadsheet,
	MimeTypePresentation,
	MimeTypeForm,
	MimeTypeDrawing,
}

var fileTypeLabels = map[string]string{
	MimeTypeDocument:     "Google Doc",
	MimeTypeSpreadsheet:  "Google Sheet",
	MimeTypePresentation: "Google Slides",
	MimeTypeForm:         "Google Form",
	MimeTypeDrawing:      "Google Drawing",
}

// FileTypeLabel returns a human-readable label for a Google-native MIME type.
func FileTypeLabel(mimeType string) string {
	if label, ok := fileTypeLabels[mimeType]; ok {
		return label
	}
	return "Google File"
}
