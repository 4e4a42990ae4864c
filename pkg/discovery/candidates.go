package discovery

import (
	"fmt"
)

// Candidate is a sidecar file whose name carries a usable external id.
type Candidate struct {
	ExternalID string
	Path       string
}

// Duplicate records a sidecar that was dropped because an earlier one already
// claimed the same external id.
type Duplicate struct {
	ExternalID string
	Kept       string
	Dropped    string
}

func (d Duplicate) String() string {
	return fmt.Sprintf("duplicate external id %s: keeping %s, dropping %s", d.ExternalID, d.Kept, d.Dropped)
}

// CandidateSet is the outcome of filtering a raw discovery listing.
type CandidateSet struct {
	Candidates []Candidate
	// Invalid holds paths whose names don't yield a numeric id.
	Invalid    []string
	Duplicates []Duplicate
}

// Candidates extracts external ids from paths, keeping the first path for
// each id. Order of the surviving candidates follows paths.
func Candidates(paths []string) CandidateSet {
	set := CandidateSet{Candidates: make([]Candidate, 0, len(paths))}
	seen := make(map[string]string, len(paths))

	for _, path := range paths {
		id, ok := ExtractExternalID(path)
		if !ok {
			set.Invalid = append(set.Invalid, path)
			continue
		}
		if kept, dup := seen[id]; dup {
			set.Duplicates = append(set.Duplicates, Duplicate{ExternalID: id, Kept: kept, Dropped: path})
			continue
		}
		seen[id] = path
		set.Candidates = append(set.Candidates, Candidate{ExternalID: id, Path: path})
	}

	return set
}

// ExternalIDs returns the ids of cs in order.
func ExternalIDs(cs []Candidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ExternalID
	}
	return ids
}
