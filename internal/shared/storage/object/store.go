package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrInvalidKey is returned when a storage key escapes the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// Stored describes an object written by Put.
type Stored struct {
	Key       string
	SizeBytes int64
	MimeType  string
}

// ObjectStore defines the contract for saving and retrieving consent document files.
type ObjectStore interface {
	Put(ctx context.Context, namespace, fileName string, r io.Reader) (Stored, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// Sniff reads up to 512 bytes to detect the content type and returns a reader that
// replays them ahead of the rest of r.
func Sniff(r io.Reader) (string, io.Reader, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	return http.DetectContentType(head[:n]), io.MultiReader(bytes.NewReader(head[:n]), r), nil
}
