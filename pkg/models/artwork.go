package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Artwork struct {
	bun.BaseModel `bun:"table:artworks,alias:aw"`

	ID                 int           `bun:",pk,nullzero" json:"id"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ExternalID         string        `bun:",nullzero" json:"external_id"`
	Title              string        `bun:",nullzero" json:"title"`
	Description        *string       `json:"description,omitempty"`
	ArtistID           int           `bun:",nullzero" json:"artist_id"`
	Artist             *Artist       `bun:"rel:belongs-to,join:artist_id=id" json:"artist,omitempty"`
	SourceURL          *string       `json:"source_url,omitempty"`
	OriginalURL        *string       `json:"original_url,omitempty"`
	ThumbnailURL       *string       `json:"thumbnail_url,omitempty"`
	XRestrict          *string       `json:"x_restrict,omitempty"`
	IsAIGenerated      bool          `json:"is_ai_generated"`
	Size               *string       `json:"size,omitempty"`
	BookmarkCount      int           `json:"bookmark_count"`
	ImageCount         int           `json:"image_count"`
	SourceDate         time.Time     `json:"source_date"`
	DirectoryCreatedAt *time.Time    `json:"directory_created_at,omitempty"`
	MetaSource         string        `bun:",nullzero" json:"meta_source"`
	Images             []*Image      `bun:"rel:has-many,join:id=artwork_id" json:"images,omitempty"`
	ArtworkTags        []*ArtworkTag `bun:"rel:has-many,join:id=artwork_id" json:"artwork_tags,omitempty"`
}

// TagNames returns the names of the loaded tag relations in link order.
func (a *Artwork) TagNames() []string {
	names := make([]string, 0, len(a.ArtworkTags))
	for _, at := range a.ArtworkTags {
		if at.Tag != nil {
			names = append(names, at.Tag.Name)
		}
	}
	return names
}
