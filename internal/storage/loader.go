package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/quarterly-extractor/internal/extract"
)

// Fetcher downloads objects by gs:// URI. *GCS satisfies it.
type Fetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Loader reads a report from a local path or a gs:// URI.
type Loader struct {
	// Remote may be nil; gs:// sources then fail.
	Remote Fetcher
}

// Load returns the document behind source.
func (l *Loader) Load(ctx context.Context, source string) (extract.Document, error) {
	if IsGCSURI(source) {
		if l.Remote == nil {
			return extract.Document{}, errors.New("loader.Load: GCS access not configured")
		}
		data, err := l.Remote.FetchFromGCS(ctx, source)
		if err != nil {
			return extract.Document{}, fmt.Errorf("loader.Load: %w", err)
		}
		return newDocument(ExtractFilenameFromGCSURI(source), data), nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return extract.Document{}, fmt.Errorf("loader.Load: read %s: %w", source, err)
	}
	return newDocument(filepath.Base(source), data), nil
}

func newDocument(name string, data []byte) extract.Document {
	doc := extract.Document{Name: name, Data: data}
	if doc.IsPDF() {
		doc.MIMEType = "application/pdf"
	}
	return doc
}
