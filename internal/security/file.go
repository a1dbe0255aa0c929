package security

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`

	// Leading bytes of the content. When present the sniffed type must be
	// allowed or be the container the declared type refines.
	Header []byte `json:"-"`

	Content io.Reader `json:"-"`
}

type FileCheck struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

// ValidateFile checks f against the size limit and the type allow-list
// without touching the violation log.
func (g *Gate) ValidateFile(f File) FileCheck {
	if f.Size > g.cfg.MaxFileSize {
		return FileCheck{Error: fmt.Sprintf("File size exceeds %s limit", formatSize(g.cfg.MaxFileSize))}
	}

	declared := normalizeType(f.Type)
	if _, ok := g.allowedTypes[declared]; !ok {
		return FileCheck{Error: fmt.Sprintf("File type %q is not allowed", f.Type)}
	}

	if len(f.Header) > 0 {
		detected := mimetype.Detect(f.Header)
		if !g.sniffedAllowed(detected, declared) {
			return FileCheck{Error: fmt.Sprintf("File content (%s) does not match an allowed type", detected.String())}
		}
	}

	return FileCheck{IsValid: true}
}

func (g *Gate) sniffedAllowed(detected *mimetype.MIME, declared string) bool {
	for t := range g.allowedTypes {
		if detected.Is(t) {
			return true
		}
	}

	// Sniffing stops at the generic container for some formats, e.g. AAC in an
	// mp42 brand MP4 detects as video/mp4 while audio/mp4 is its child.
	// The root type never counts.
	for m := mimetype.Lookup(declared); m != nil && m.Parent() != nil; m = m.Parent() {
		if m.Is(detected.String()) {
			return true
		}
	}
	return false
}

// Lower-cased media type without parameters
func normalizeType(t string) string {
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(t))
	}
	return mediaType
}

func formatSize(n int64) string {
	if n%megabyte == 0 {
		return fmt.Sprintf("%dMB", n/megabyte)
	}
	return fmt.Sprintf("%d bytes", n)
}
