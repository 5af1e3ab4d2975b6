package inspect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"consent-backend/internal/inspect/inspecttest"
)

func TestInspectCountsPDFPages(t *testing.T) {
	info, err := Inspect(context.Background(), inspecttest.PDF(3), "application/pdf", "terms.pdf")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.MimeType != MimePDF || info.PageCount != 3 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestInspectRejectsBrokenPDF(t *testing.T) {
	_, err := Inspect(context.Background(), []byte("%PDF-1.4\nnot really a pdf"), "application/pdf", "terms.pdf")
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestInspectDOCXFromZipMime(t *testing.T) {
	info, err := Inspect(context.Background(), inspecttest.Zip("word/document.xml"), "application/zip", "terms.docx")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.MimeType != MimeDOCX || info.PageCount != 0 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestInspectRejectsPlainZip(t *testing.T) {
	_, err := Inspect(context.Background(), inspecttest.Zip("notes.txt"), "application/zip", "notes.zip")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestInspectRejectsOtherTypes(t *testing.T) {
	_, err := Inspect(context.Background(), []byte("hello"), "text/plain; charset=utf-8", "notes.txt")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if !strings.Contains(err.Error(), "text/plain") {
		t.Fatalf("expected mime in error, got %v", err)
	}
}

func TestInspectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Inspect(ctx, inspecttest.PDF(1), MimePDF, "a.pdf"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeMimeType(t *testing.T) {
	cases := []struct {
		name     string
		mime     string
		fileName string
		data     []byte
		want     string
	}{
		{name: "params stripped", mime: "Application/PDF; charset=binary", want: MimePDF},
		{name: "octet stream pdf magic", mime: "application/octet-stream", data: []byte("%PDF-1.7"), want: MimePDF},
		{name: "empty mime by extension", fileName: "terms.DOCX", want: MimeDOCX},
		{name: "zip without hints", mime: "application/zip", fileName: "a.zip", want: "application/zip"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeMimeType(tc.mime, tc.fileName, tc.data); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
