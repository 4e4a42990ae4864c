package metadata

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Format renders r in the sidecar layout. Parsing the output yields a Record
// equal to r as long as r came from Parse.
func Format(r *Record) []byte {
	var b strings.Builder

	write := func(field string, lines ...string) {
		b.WriteString(field)
		b.WriteString("\n")
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	writeIf := func(field, value string) {
		if value != "" {
			write(field, value)
		}
	}

	write(FieldID, r.ID)
	write(FieldUser, r.User)
	write(FieldUserID, r.UserID)
	write(FieldTitle, r.Title)
	if r.Description != "" {
		write(FieldDescription, strings.Split(r.Description, "\n")...)
	}
	if len(r.Tags) > 0 {
		tags := make([]string, len(r.Tags))
		for i, tag := range r.Tags {
			tags[i] = "#" + tag
		}
		write(FieldTags, tags...)
	}
	writeIf(FieldURL, r.SourceURL)
	writeIf(FieldOriginal, r.OriginalURL)
	writeIf(FieldThumbnail, r.ThumbnailURL)
	writeIf(FieldXRestrict, r.XRestrict)
	if r.AIGenerated != nil {
		if *r.AIGenerated {
			write(FieldAI, "Yes")
		} else {
			write(FieldAI, "No")
		}
	}
	writeIf(FieldSize, r.Size)
	if r.BookmarkCount != 0 {
		write(FieldBookmark, strconv.Itoa(r.BookmarkCount))
	}
	if r.SourceDate != nil {
		write(FieldDate, r.SourceDate.Format(time.RFC3339Nano))
	}

	return []byte(b.String())
}

// Write formats r into the sidecar at path.
func Write(path string, r *Record) error {
	//nolint:gosec // sidecars are shared with the export tooling
	return errors.WithStack(os.WriteFile(path, Format(r), 0644))
}
