package models

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Image struct {
	bun.BaseModel `bun:"table:images,alias:img"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ArtworkID int       `bun:",nullzero" json:"artwork_id"`
	Path      string    `bun:",nullzero" json:"path"`
	Size      int64     `json:"size"`
	SortOrder int       `json:"sort_order"`
	MimeType  *string   `json:"mime_type,omitempty"`
}

// NormalizeImagePath converts an image path to the root-relative, forward
// slash form that every written row stores. Absolute paths under root are made
// relative; anything else is only cleaned. Older rows holding absolute paths
// are never compared against; a rescan replaces them with the rest.
func NormalizeImagePath(root, p string) string {
	if filepath.IsAbs(p) && root != "" {
		if rel, err := filepath.Rel(root, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			p = rel
		}
	}
	p = filepath.ToSlash(p)
	return strings.TrimPrefix(path.Clean(p), "./")
}
