package object

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"consent-backend/internal/shared/util"
)

// NewKey builds a storage key of the form <sha256(namespace)>/<random>_<name>.
// The namespace is usually the uploading operator, so keys never expose it.
func NewKey(namespace, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.HashKey(namespace), strings.ReplaceAll(uuid.NewString(), "-", "")+"_"+name), nil
}

// BaseName strips the random prefix NewKey added, returning the display file name.
func BaseName(key string) string {
	base := path.Base(key)
	if i := strings.IndexByte(base, '_'); i == 32 {
		return base[i+1:]
	}
	return base
}
