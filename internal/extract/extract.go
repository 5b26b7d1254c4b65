// Package extract turns uploaded file bytes into plain text, keyed by the
// lower-case file extension.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Extractor{}
)

func Register(ext string, e Extractor) {
	key := NormalizeExt(ext)
	if key == "" || e == nil {
		return
	}
	registryMu.Lock()
	registry[key] = e
	registryMu.Unlock()
}

func Lookup(ext string) (Extractor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[NormalizeExt(ext)]
	return e, ok
}

// Registered lists the extensions with an extractor, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for ext := range registry {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract runs the extractor registered for fileType. Every failure is an
// extraction error.
func Extract(ctx context.Context, data []byte, fileType string) (string, error) {
	e, ok := Lookup(fileType)
	if !ok {
		return "", appErr.Extraction(fmt.Errorf("no extractor for %s", fileType))
	}
	text, err := e.Extract(ctx, data)
	if err != nil {
		return "", appErr.Extraction(err)
	}
	return text, nil
}

// FileType returns the lower-case extension of filename, including the dot.
func FileType(filename string) string {
	return NormalizeExt(filepath.Ext(filename))
}

func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
