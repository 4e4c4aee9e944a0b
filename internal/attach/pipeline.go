package attach

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/rxassist/internal/backend"
)

// Uploader is the slice of the backend client the pipeline needs.
type Uploader interface {
	UploadDocument(ctx context.Context, filename string, data []byte) (backend.UploadResult, error)
}

// Pipeline validates and uploads attachments. It never appends chat turns;
// the caller decides what to do with the analyzed attachment.
type Pipeline struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline using the given uploader.
func NewPipeline(uploader Uploader) *Pipeline {
	return &Pipeline{
		uploader: uploader,
		logger:   slog.Default(),
	}
}

// Stage validates f, uploads it for analysis, and returns the analyzed
// attachment. Validation failures (ErrUnsupportedType, ErrTooLarge) are
// returned before any network call. On upload failure the returned attachment
// is in StateRejected and the error wraps ErrUploadFailed.
func (p *Pipeline) Stage(ctx context.Context, f File) (*Attachment, error) {
	if !Allowed(f.MIMEType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.MIMEType)
	}
	size := int64(len(f.Data))
	if size > MaxSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, MaxSizeBytes)
	}

	att := &Attachment{
		ID:        uuid.New().String(),
		Name:      f.Name,
		MIMEType:  f.MIMEType,
		SizeBytes: size,
		State:     StateStaged,
	}

	if f.MIMEType == "application/pdf" {
		// Preflight only; the backend OCR is authoritative, so an unreadable
		// PDF is uploaded anyway.
		if pages, err := pdfPageCount(f.Data); err != nil {
			p.logger.Warn("pdf preflight failed", "name", f.Name, "error", err)
		} else {
			att.PageCount = pages
		}
	}

	att.State = StateUploading
	result, err := p.uploader.UploadDocument(ctx, f.Name, f.Data)
	if err != nil {
		att.State = StateRejected
		return att, fmt.Errorf("%w: %s: %v", ErrUploadFailed, f.Name, err)
	}

	att.RemoteURL = result.URL
	att.AnalysisSummary = result.Summary
	att.AnalysisSuggestions = result.Suggestions
	att.State = StateAnalyzed
	return att, nil
}

// StageAll stages several files with bounded concurrency. Results keep the
// input order. The first error cancels the remaining uploads.
func (p *Pipeline) StageAll(ctx context.Context, files []File) ([]*Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]*Attachment, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	for i, f := range files {
		g.Go(func() error {
			att, err := p.Stage(gCtx, f)
			if err != nil {
				return fmt.Errorf("staging %s: %w", f.Name, err)
			}
			results[i] = att
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// pdfPageCount parses data as a PDF and returns its page count.
func pdfPageCount(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}
