package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectName builds a collision free key: folder/uuid-timestamp.ext. The
// client supplied name only contributes its extension.
func ObjectName(folder, originalName string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "uploads"
	}

	name := fmt.Sprintf("%s/%s-%s", folder, uuid.New().String(), time.Now().UTC().Format("20060102150405"))

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" || len(ext) > 10 {
		ext = ".bin"
	}
	return name + ext
}
