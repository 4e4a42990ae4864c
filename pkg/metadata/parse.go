package metadata

import (
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxLineSize = 1024 * 1024

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// Parse reads and validates the sidecar at path. A missing file yields an
// error matching ErrSidecarNotFound; every other failure is a *ParseError.
func Parse(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(ErrSidecarNotFound, path)
		}
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	return ParseBytes(path, data)
}

// ParseBytes parses sidecar content. path is only used in errors.
func ParseBytes(path string, data []byte) (*Record, error) {
	fields, err := splitFields(data)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	r := &Record{
		ID:           single(fields[FieldID]),
		User:         single(fields[FieldUser]),
		UserID:       single(fields[FieldUserID]),
		Title:        single(fields[FieldTitle]),
		Description:  strings.TrimSpace(strings.Join(fields[FieldDescription], "\n")),
		Tags:         parseTags(fields[FieldTags]),
		SourceURL:    single(fields[FieldURL]),
		OriginalURL:  single(fields[FieldOriginal]),
		ThumbnailURL: single(fields[FieldThumbnail]),
		XRestrict:    single(fields[FieldXRestrict]),
		Size:         single(fields[FieldSize]),
	}

	if lines, ok := fields[FieldAI]; ok {
		ai := strings.EqualFold(single(lines), "yes")
		r.AIGenerated = &ai
	}
	if v := single(fields[FieldBookmark]); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.BookmarkCount = n
		}
	}
	if v := single(fields[FieldDate]); v != "" {
		r.SourceDate = parseDate(v)
	}

	if err := validateRecord(path, r); err != nil {
		return nil, err
	}

	return r, nil
}

// splitFields groups content lines under the field name that precedes them.
// Lines before the first field are ignored. An unrecognized line after a
// blank line continues the most recent field with the blank lines kept.
func splitFields(data []byte) (map[string][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	fields := make(map[string][]string)
	current := ""
	last := ""
	pendingBlank := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)

		if _, ok := knownFields[trimmed]; ok {
			current = trimmed
			last = trimmed
			pendingBlank = 0
			fields[current] = []string{}
			continue
		}

		if trimmed == "" {
			current = ""
			if last != "" {
				pendingBlank++
			}
			continue
		}

		if current == "" {
			if last == "" {
				continue
			}
			current = last
			for ; pendingBlank > 0; pendingBlank-- {
				fields[current] = append(fields[current], "")
			}
		}
		pendingBlank = 0
		fields[current] = append(fields[current], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return fields, nil
}

func single(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func parseTags(lines []string) []string {
	var tags []string
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		tag := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func parseDate(v string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
