// Package attach stages user-supplied files for the assistant: local
// validation, backend upload, and the analysis result that ends up referenced
// by a chat turn.
package attach

import "errors"

var (
	// ErrUnsupportedType is returned for files outside the upload allow-list.
	ErrUnsupportedType = errors.New("attach: unsupported file type")
	// ErrTooLarge is returned for files over the upload size limit.
	ErrTooLarge = errors.New("attach: file too large")
	// ErrUploadFailed wraps transport or backend errors during analysis upload.
	ErrUploadFailed = errors.New("attach: upload failed")
)

// MaxSizeBytes is the client-side upload limit (10 MiB). Larger files are
// rejected before any network call.
const MaxSizeBytes = 10 << 20

// State is the lifecycle state of an Attachment.
type State string

const (
	StateStaged    State = "staged"
	StateUploading State = "uploading"
	StateAnalyzed  State = "analyzed"
	StateRejected  State = "rejected"
)

// File is a user-selected file before staging.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Attachment is a staged file plus its backend analysis. It is created by
// Pipeline.Stage and later referenced (read-only) by the user turn that
// carries it.
type Attachment struct {
	ID                  string
	Name                string
	MIMEType            string
	SizeBytes           int64
	State               State
	RemoteURL           string
	AnalysisSummary     string
	AnalysisSuggestions []string

	// PageCount is filled by the local PDF preflight; zero for images or
	// unreadable PDFs.
	PageCount int
}

// allowedTypes is the upload allow-list. image/jpg is kept alongside
// image/jpeg because browsers still emit both.
var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/jpg":       true,
	"application/pdf": true,
}

// Allowed reports whether mimeType is accepted for upload.
func Allowed(mimeType string) bool {
	return allowedTypes[mimeType]
}
