package inspect

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	// ErrUnsupported is returned for content that is not a consent document format.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrUnreadable is returned when a document claims a supported format but cannot be parsed.
	ErrUnreadable = errors.New("document is unreadable")
)

// Info describes an uploaded consent document.
type Info struct {
	MimeType  string
	PageCount int
}

// Inspect validates data as a PDF or DOCX and reports its normalized mime type.
// PDFs also report their page count; DOCX files have no fixed pagination and report 0.
// Libraries used: github.com/ledongthuc/pdf (PDF).
func Inspect(ctx context.Context, data []byte, mimeType, fileName string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	normalized := NormalizeMimeType(mimeType, fileName, data)
	switch normalized {
	case MimePDF:
		pages, err := countPDFPages(data)
		if err != nil {
			return Info{}, fmt.Errorf("%w: pdf: %w", ErrUnreadable, err)
		}
		return Info{MimeType: MimePDF, PageCount: pages}, nil
	case MimeDOCX:
		if err := checkDOCX(data); err != nil {
			return Info{}, fmt.Errorf("%w: docx: %w", ErrUnreadable, err)
		}
		return Info{MimeType: MimeDOCX}, nil
	default:
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
}

func countPDFPages(data []byte) (n int, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	n = reader.NumPage()
	if n <= 0 {
		return 0, errors.New("no pages")
	}
	return n, nil
}

func checkDOCX(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return nil
		}
	}
	return errors.New("document.xml file not found")
}

// NormalizeMimeType strips parameters from mimeType and resolves the generic zip
// type that browsers and http.DetectContentType report for OOXML files.
func NormalizeMimeType(mimeType, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" && clean != "application/octet-stream" && clean != "" {
		return clean
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return MimePDF
	}
	if isDOCXArchive(data) {
		return MimeDOCX
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	}
	return clean
}

func isDOCXArchive(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return checkDOCX(data) == nil
}
