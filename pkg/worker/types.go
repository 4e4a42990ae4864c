package worker

import (
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/pkg/errors"
)

var (
	// ErrScanCancelled is returned when the cancel predicate fired between
	// batches. Batches committed before that point stay committed.
	ErrScanCancelled = errors.New("scan cancelled")

	// ErrScanInProgress is returned when another scan or rescan holds the run
	// guard, in this process or another one.
	ErrScanInProgress = errors.WithStack(errcodes.Conflict("Scan"))

	// ErrScanRootMissing is returned when neither the options, the stored
	// setting, nor the config name a scan root.
	ErrScanRootMissing = errors.New("no scan root configured")

	// ErrRescanSourceMissing is returned when the sidecar for a rescan can't
	// be found in the given directory.
	ErrRescanSourceMissing = errors.New("rescan sidecar not found")

	// ErrRescanNoMedia is returned when a rescanned artwork has no media
	// files left.
	ErrRescanNoMedia = errors.New("rescan found no media files")
)

type Phase string

const (
	PhaseCounting    Phase = "counting"
	PhaseDiscovering Phase = "discovering"
	PhaseScanning    Phase = "scanning"
	PhaseComplete    Phase = "complete"
)

// Progress is emitted at each phase transition and after every batch.
type Progress struct {
	Phase      Phase  `json:"phase"`
	Message    string `json:"message"`
	Current    *int   `json:"current,omitempty"`
	Total      *int   `json:"total,omitempty"`
	Percentage int    `json:"percentage"`
}

type ScanOptions struct {
	// ForceUpdate wipes all library tables before discovery and re-ingests
	// everything.
	ForceUpdate bool

	// Root overrides the stored scan path.
	Root string

	// MetadataPaths, when set, replaces filesystem discovery with this list
	// of root-relative sidecar paths.
	MetadataPaths []string

	// OnProgress receives progress updates. It's called from the scanning
	// goroutine.
	OnProgress func(Progress)

	// ShouldCancel is polled before each batch starts.
	ShouldCancel func() bool
}

// ScanResult is the aggregate outcome of a scan or rescan. It's always
// returned, even alongside an error, and then holds what was done before the
// failure.
type ScanResult struct {
	TotalArtworks    int      `json:"total_artworks"`
	NewArtists       int      `json:"new_artists"`
	NewArtworks      int      `json:"new_artworks"`
	NewImages        int      `json:"new_images"`
	NewTags          int      `json:"new_tags"`
	SkippedArtworks  int      `json:"skipped_artworks"`
	RemovedArtworks  int      `json:"removed_artworks"`
	Errors           []string `json:"errors"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

func newScanResult() *ScanResult {
	return &ScanResult{Errors: []string{}}
}

func (r *ScanResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}
