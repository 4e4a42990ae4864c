package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	// SettingScanPath holds the root directory that scans read their
	// sidecar files from.
	SettingScanPath = "scan_path"
)

type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	Key       string    `bun:",pk" json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
