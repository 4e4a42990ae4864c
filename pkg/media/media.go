// Package media finds the image files that belong to an artwork. Files sit
// next to the sidecar and are named after the external id:
//
//	<id>_p<N>.<ext>       page N
//	<id>_ugoira<N>.<ext>  animation frame N
//	<id>.<ext>            single page, sorted as page 0
package media

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Extensions lists the accepted media extensions, lowercase without the dot.
var Extensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "avif"}

var extensionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Extensions))
	for _, ext := range Extensions {
		m[ext] = struct{}{}
	}
	return m
}()

var pageSuffixRE = regexp.MustCompile(`^(?:_p|_ugoira)(\d+)$`)

// File is one media file belonging to an artwork.
type File struct {
	ExternalID string
	Path       string
	Size       int64
	SortOrder  int
	MimeType   string
}

// Associator looks up the media files of an artwork.
type Associator struct {
	// SniffMimeType enables content sniffing. When false the MIME type is
	// guessed from the extension.
	SniffMimeType bool
}

func NewAssociator() *Associator {
	return &Associator{SniffMimeType: true}
}

// FindImages returns the media files for externalID inside dir, ordered by
// page index. An empty result means the artwork has no media.
func (a *Associator) FindImages(ctx context.Context, dir, externalID string) ([]File, error) {
	log := logger.FromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read media directory %s", dir)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		order, ok := MatchPage(entry.Name(), externalID)
		if !ok {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			log.Warn("skipping unreadable media file", logger.Data{"path": path, "error": err.Error()})
			continue
		}

		files = append(files, File{
			ExternalID: externalID,
			Path:       path,
			Size:       info.Size(),
			SortOrder:  order,
			MimeType:   a.mimeType(path),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].SortOrder != files[j].SortOrder {
			return files[i].SortOrder < files[j].SortOrder
		}
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// MatchPage reports whether name is a media file of externalID and returns
// its page index.
func MatchPage(name, externalID string) (int, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := extensionSet[ext]; !ok {
		return 0, false
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	rest, ok := strings.CutPrefix(stem, externalID)
	if !ok {
		return 0, false
	}
	if rest == "" {
		return 0, true
	}

	m := pageSuffixRE.FindStringSubmatch(rest)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a *Associator) mimeType(path string) string {
	if a.SniffMimeType {
		if mt, err := mimetype.DetectFile(path); err == nil && mt.String() != "application/octet-stream" {
			return mt.String()
		}
	}
	return extensionMime[strings.ToLower(filepath.Ext(path))]
}

var extensionMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".avif": "image/avif",
}
