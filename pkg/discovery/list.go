package discovery

import (
	"context"

	"github.com/robinjoseph08/golib/logger"
)

// ListProvider serves a caller-supplied list of root-relative sidecar paths
// instead of walking the filesystem.
type ListProvider struct {
	Paths []string
}

func NewListProvider(paths []string) *ListProvider {
	return &ListProvider{Paths: paths}
}

func (p *ListProvider) Discover(ctx context.Context, root string) ([]string, error) {
	log := logger.FromContext(ctx)

	paths := make([]string, 0, len(p.Paths))
	for _, rel := range p.Paths {
		abs, ok := resolveRelative(root, rel)
		if !ok {
			log.Warn("ignoring listed path outside root", logger.Data{"path": rel})
			continue
		}
		paths = append(paths, abs)
	}
	return paths, nil
}
