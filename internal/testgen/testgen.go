// Package testgen writes sidecar and media fixtures for scan tests.
package testgen

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/namehu/pixishelf/pkg/metadata"
)

// pngHeader makes generated media sniff as image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// jpegHeader makes generated media sniff as image/jpeg.
var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0}

// ArtworkOptions describes one artwork fixture: a sidecar plus its pages.
type ArtworkOptions struct {
	ID     string
	User   string
	UserID string
	Title  string
	Tags   []string
	// PageSizes holds the byte size of each page, written as <id>_p<N>.jpg.
	PageSizes []int
	// Extra lines appended verbatim to the sidecar, e.g. "Bookmark\nabc\n".
	Extra string
}

// TempDir creates a temporary directory for testing and registers cleanup.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempScanRoot creates an empty scan root.
func TempScanRoot(t *testing.T) string {
	t.Helper()
	return TempDir(t, "testgen-scan-*")
}

// CreateSubDir creates a subdirectory within the given parent directory.
// Returns the full path to the created subdirectory.
func CreateSubDir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create subdirectory %s: %v", dir, err)
	}
	return dir
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// WriteMedia writes a JPEG-looking file of exactly size bytes.
func WriteMedia(t *testing.T, dir, name string, size int) string {
	t.Helper()
	header := jpegHeader
	if filepath.Ext(name) == ".png" {
		header = pngHeader
	}
	content := make([]byte, size)
	copy(content, header)
	return WriteFile(t, dir, name, content)
}

// Sidecar renders the minimal sidecar for opts.
func Sidecar(opts ArtworkOptions) []byte {
	r := &metadata.Record{
		ID:     opts.ID,
		User:   opts.User,
		UserID: opts.UserID,
		Title:  opts.Title,
		Tags:   opts.Tags,
	}
	var b bytes.Buffer
	b.Write(metadata.Format(r))
	b.WriteString(opts.Extra)
	return b.Bytes()
}

// WriteArtwork writes <id>-meta.txt and one media file per page into dir and
// returns the sidecar path.
func WriteArtwork(t *testing.T, dir string, opts ArtworkOptions) string {
	t.Helper()
	path := WriteFile(t, dir, opts.ID+"-meta.txt", Sidecar(opts))
	for i, size := range opts.PageSizes {
		WriteMedia(t, dir, opts.ID+"_p"+strconv.Itoa(i)+".jpg", size)
	}
	return path
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
