package worker

import (
	"context"
)

// ArtistResolver maps user ids (with display names) to artist ids, creating
// missing artists. It returns how many were created.
type ArtistResolver interface {
	ResolveArtists(ctx context.Context, names map[string]string) (map[string]int, int, error)
}

// TagResolver maps tag names to tag ids, creating missing tags. It returns
// how many were created.
type TagResolver interface {
	ResolveTags(ctx context.Context, names []string) (map[string]int, int, error)
}

// ScanCache holds the natural key => id lookups for one run. Each batch only
// asks the resolvers for keys the cache hasn't seen, so a key costs at most
// one lookup per run no matter how many artworks share it. Batches are
// resolved one at a time, so the cache isn't safe for concurrent use.
type ScanCache struct {
	artists map[string]int
	tags    map[string]int

	artistLookups int
	tagLookups    int
	hits          int
}

// NewScanCache creates an empty ScanCache.
func NewScanCache() *ScanCache {
	return &ScanCache{
		artists: make(map[string]int),
		tags:    make(map[string]int),
	}
}

// ResolveArtists returns the artist id for every user id in names. Only the
// user ids missing from the cache are sent to svc.
func (c *ScanCache) ResolveArtists(ctx context.Context, names map[string]string, svc ArtistResolver) (map[string]int, int, error) {
	ids := make(map[string]int, len(names))
	missing := make(map[string]string)
	for userID, name := range names {
		if id, ok := c.artists[userID]; ok {
			ids[userID] = id
			c.hits++
			continue
		}
		missing[userID] = name
	}
	if len(missing) == 0 {
		return ids, 0, nil
	}

	c.artistLookups++
	resolved, created, err := svc.ResolveArtists(ctx, missing)
	if err != nil {
		return nil, 0, err
	}
	for userID, id := range resolved {
		c.artists[userID] = id
		ids[userID] = id
	}
	return ids, created, nil
}

// ResolveTags returns the tag id for every name. Only the names missing from
// the cache are sent to svc.
func (c *ScanCache) ResolveTags(ctx context.Context, names []string, svc TagResolver) (map[string]int, int, error) {
	ids := make(map[string]int, len(names))
	var missing []string
	queued := make(map[string]struct{})
	for _, name := range names {
		if id, ok := c.tags[name]; ok {
			ids[name] = id
			c.hits++
			continue
		}
		if _, ok := queued[name]; ok {
			continue
		}
		queued[name] = struct{}{}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return ids, 0, nil
	}

	c.tagLookups++
	resolved, created, err := svc.ResolveTags(ctx, missing)
	if err != nil {
		return nil, 0, err
	}
	for name, id := range resolved {
		c.tags[name] = id
		ids[name] = id
	}
	return ids, created, nil
}

// ArtistCount returns the number of cached artists.
func (c *ScanCache) ArtistCount() int {
	return len(c.artists)
}

// TagCount returns the number of cached tags.
func (c *ScanCache) TagCount() int {
	return len(c.tags)
}

// Lookups returns how many resolver calls the cache has made.
func (c *ScanCache) Lookups() int {
	return c.artistLookups + c.tagLookups
}

// Hits returns how many keys were answered from the cache.
func (c *ScanCache) Hits() int {
	return c.hits
}

// ScanContext is the state of one run. It's created when a run starts and
// dropped when it ends.
type ScanContext struct {
	Root    string
	Options ScanOptions
	Cache   *ScanCache
	Result  *ScanResult
}

func newScanContext(root string, opts ScanOptions) *ScanContext {
	return &ScanContext{
		Root:    root,
		Options: opts,
		Cache:   NewScanCache(),
		Result:  newScanResult(),
	}
}

func (sc *ScanContext) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return sc.Options.ShouldCancel != nil && sc.Options.ShouldCancel()
}

func (sc *ScanContext) progress(p Progress) {
	if sc.Options.OnProgress != nil {
		sc.Options.OnProgress(p)
	}
}
