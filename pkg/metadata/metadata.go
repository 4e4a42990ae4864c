// Package metadata reads and writes the plain-text sidecar files that sit
// next to each exported artwork. A sidecar is a sequence of field-name lines,
// each followed by one or more content lines:
//
//	ID
//	123
//
//	Title
//	Sunset
//
// A blank line or the next field name ends the current field.
package metadata

import "time"

// Field names recognized in a sidecar, in the order Format writes them.
const (
	FieldID          = "ID"
	FieldUser        = "User"
	FieldUserID      = "UserID"
	FieldTitle       = "Title"
	FieldDescription = "Description"
	FieldTags        = "Tags"
	FieldURL         = "URL"
	FieldOriginal    = "Original"
	FieldThumbnail   = "Thumbnail"
	FieldXRestrict   = "xRestrict"
	FieldAI          = "AI"
	FieldSize        = "Size"
	FieldBookmark    = "Bookmark"
	FieldDate        = "Date"
)

var fieldOrder = []string{
	FieldID,
	FieldUser,
	FieldUserID,
	FieldTitle,
	FieldDescription,
	FieldTags,
	FieldURL,
	FieldOriginal,
	FieldThumbnail,
	FieldXRestrict,
	FieldAI,
	FieldSize,
	FieldBookmark,
	FieldDate,
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(fieldOrder))
	for _, f := range fieldOrder {
		m[f] = struct{}{}
	}
	return m
}()

// Record is the structured form of one sidecar file.
type Record struct {
	ID            string   `sidecar:"ID" mod:"trim" validate:"required,digits"`
	User          string   `sidecar:"User" mod:"trim" validate:"required"`
	UserID        string   `sidecar:"UserID" mod:"trim" validate:"required,digits"`
	Title         string   `sidecar:"Title" mod:"trim" validate:"required"`
	Description   string   `sidecar:"Description"`
	Tags          []string `sidecar:"Tags"`
	SourceURL     string   `sidecar:"URL" mod:"trim"`
	OriginalURL   string   `sidecar:"Original" mod:"trim"`
	ThumbnailURL  string   `sidecar:"Thumbnail" mod:"trim"`
	XRestrict     string   `sidecar:"xRestrict" mod:"trim"`
	AIGenerated   *bool    `sidecar:"AI"`
	Size          string   `sidecar:"Size" mod:"trim"`
	BookmarkCount int      `sidecar:"Bookmark"`
	// SourceDate is nil when the Date field is absent or unparseable. The
	// parser never invents a date; callers pick the fallback.
	SourceDate *time.Time `sidecar:"Date"`
}

// IsAIGenerated reports whether the sidecar marked the artwork as AI
// generated.
func (r *Record) IsAIGenerated() bool {
	return r.AIGenerated != nil && *r.AIGenerated
}

// SourceDateOr returns the parsed source date, or fallback when there is none.
func (r *Record) SourceDateOr(fallback time.Time) time.Time {
	if r.SourceDate == nil {
		return fallback
	}
	return *r.SourceDate
}
