package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// LocalProvider walks the filesystem below the root.
type LocalProvider struct {
	MaxDepth int
}

// NewLocalProvider returns a LocalProvider limited to maxDepth levels. Zero or
// negative means DefaultMaxDepth.
func NewLocalProvider(maxDepth int) *LocalProvider {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &LocalProvider{MaxDepth: maxDepth}
}

func (p *LocalProvider) Discover(ctx context.Context, root string) ([]string, error) {
	log := logger.FromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "scan root %s is not accessible", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("scan root %s is not a directory", root)
	}

	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return errors.WithStack(err)
			}
			log.Warn("skipping unreadable path", logger.Data{"path": path, "error": err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.WithStack(ctxErr)
		}

		depth := pathDepth(root, path)
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || depth >= maxDepth) {
				return fs.SkipDir
			}
			return nil
		}
		if depth > maxDepth {
			return nil
		}
		if IsSidecarName(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	log.Info("local discovery finished", logger.Data{"root": root, "count": len(paths)})
	return paths, nil
}

// pathDepth counts the directory levels between root and path, so a file
// directly in root has depth 1.
func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
