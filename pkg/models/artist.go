package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Artist is keyed by the export's numeric user id. Rows are created lazily
// during scans and only removed by a full reset.
type Artist struct {
	bun.BaseModel `bun:"table:artists,alias:ar"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `bun:",nullzero" json:"user_id"`
	Name      string    `bun:",nullzero" json:"name"`
	Username  *string   `json:"username,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
}
