package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Name         string    `bun:",nullzero" json:"name"`
	ArtworkCount int       `bun:",scanonly" json:"artwork_count"`
}

type ArtworkTag struct {
	bun.BaseModel `bun:"table:artwork_tags,alias:at"`

	ID        int  `bun:",pk,nullzero" json:"id"`
	ArtworkID int  `bun:",nullzero" json:"artwork_id"`
	TagID     int  `bun:",nullzero" json:"tag_id"`
	Tag       *Tag `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}
