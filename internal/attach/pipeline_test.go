package attach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kalambet/rxassist/internal/backend"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	names []string
	err   error
}

func (f *fakeUploader) UploadDocument(_ context.Context, filename string, _ []byte) (backend.UploadResult, error) {
	f.mu.Lock()
	f.calls++
	f.names = append(f.names, filename)
	f.mu.Unlock()
	if f.err != nil {
		return backend.UploadResult{}, f.err
	}
	return backend.UploadResult{
		URL:         "mock://" + filename,
		Summary:     "summary of " + filename,
		Suggestions: []string{"Process invoice"},
	}, nil
}

func TestStageRejectsUnsupportedType(t *testing.T) {
	uploader := &fakeUploader{}
	p := NewPipeline(uploader)

	for _, mimeType := range []string{"image/gif", "text/plain", "application/zip", ""} {
		_, err := p.Stage(context.Background(), File{Name: "x", MIMEType: mimeType, Data: []byte("data")})
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Stage(%q) err = %v, want ErrUnsupportedType", mimeType, err)
		}
	}
	if uploader.calls != 0 {
		t.Errorf("uploader called %d times for rejected types, want 0", uploader.calls)
	}
}

func TestStageAcceptsAllowedTypes(t *testing.T) {
	uploader := &fakeUploader{}
	p := NewPipeline(uploader)

	for _, mimeType := range []string{"image/jpeg", "image/png", "image/jpg", "application/pdf"} {
		att, err := p.Stage(context.Background(), File{Name: "x", MIMEType: mimeType, Data: []byte("data")})
		if err != nil {
			t.Errorf("Stage(%q): %v", mimeType, err)
			continue
		}
		if att.State != StateAnalyzed {
			t.Errorf("Stage(%q) state = %q, want analyzed", mimeType, att.State)
		}
	}
}

func TestStageRejectsOversizedFile(t *testing.T) {
	uploader := &fakeUploader{}
	p := NewPipeline(uploader)

	_, err := p.Stage(context.Background(), File{
		Name:     "big.png",
		MIMEType: "image/png",
		Data:     make([]byte, MaxSizeBytes+1),
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if uploader.calls != 0 {
		t.Errorf("uploader called %d times for oversized file, want 0", uploader.calls)
	}
}

func TestStageAllowsExactLimit(t *testing.T) {
	p := NewPipeline(&fakeUploader{})

	att, err := p.Stage(context.Background(), File{
		Name:     "limit.png",
		MIMEType: "image/png",
		Data:     make([]byte, MaxSizeBytes),
	})
	if err != nil {
		t.Fatalf("Stage at exact limit: %v", err)
	}
	if att.SizeBytes != MaxSizeBytes {
		t.Errorf("SizeBytes = %d, want %d", att.SizeBytes, MaxSizeBytes)
	}
}

func TestStageFillsAnalysis(t *testing.T) {
	p := NewPipeline(&fakeUploader{})

	att, err := p.Stage(context.Background(), File{Name: "inv.png", MIMEType: "image/png", Data: []byte("data")})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if att.ID == "" {
		t.Error("attachment has no ID")
	}
	if att.RemoteURL != "mock://inv.png" {
		t.Errorf("RemoteURL = %q", att.RemoteURL)
	}
	if att.AnalysisSummary != "summary of inv.png" {
		t.Errorf("AnalysisSummary = %q", att.AnalysisSummary)
	}
	if len(att.AnalysisSuggestions) != 1 {
		t.Errorf("AnalysisSuggestions = %v", att.AnalysisSuggestions)
	}
}

func TestStageUploadFailure(t *testing.T) {
	p := NewPipeline(&fakeUploader{err: fmt.Errorf("backend down")})

	att, err := p.Stage(context.Background(), File{Name: "inv.png", MIMEType: "image/png", Data: []byte("data")})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if att == nil || att.State != StateRejected {
		t.Errorf("attachment = %+v, want rejected state", att)
	}
}

func TestStageUnreadablePDFStillUploads(t *testing.T) {
	uploader := &fakeUploader{}
	p := NewPipeline(uploader)

	// Not a valid PDF; the preflight fails but the upload proceeds.
	att, err := p.Stage(context.Background(), File{Name: "bad.pdf", MIMEType: "application/pdf", Data: []byte("not a pdf")})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if att.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0 for unreadable pdf", att.PageCount)
	}
	if uploader.calls != 1 {
		t.Errorf("uploader calls = %d, want 1", uploader.calls)
	}
}

func TestStageAllKeepsInputOrder(t *testing.T) {
	p := NewPipeline(&fakeUploader{})

	files := make([]File, 6)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("f%d.png", i), MIMEType: "image/png", Data: []byte("data")}
	}

	atts, err := p.StageAll(context.Background(), files)
	if err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	if len(atts) != len(files) {
		t.Fatalf("got %d attachments, want %d", len(atts), len(files))
	}
	for i, att := range atts {
		if want := files[i].Name; att.Name != want {
			t.Errorf("atts[%d].Name = %q, want %q", i, att.Name, want)
		}
	}
}

func TestStageAllEmptyInput(t *testing.T) {
	p := NewPipeline(&fakeUploader{})

	atts, err := p.StageAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	if atts != nil {
		t.Errorf("atts = %v, want nil", atts)
	}
}

func TestStageAllPropagatesValidationError(t *testing.T) {
	p := NewPipeline(&fakeUploader{})

	_, err := p.StageAll(context.Background(), []File{
		{Name: "ok.png", MIMEType: "image/png", Data: []byte("data")},
		{Name: "bad.gif", MIMEType: "image/gif", Data: []byte("data")},
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		mimeType string
		want     bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/jpg", true},
		{"application/pdf", true},
		{"image/webp", false},
		{"application/json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.mimeType); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.mimeType, got, tt.want)
		}
	}
}

func TestPDFPageCountInvalidData(t *testing.T) {
	if _, err := pdfPageCount(bytes.Repeat([]byte("x"), 64)); err == nil {
		t.Error("expected error for non-pdf data")
	}
}
