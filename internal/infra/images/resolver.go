package images

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps pool image references to files under a root directory.
// A missing file is not an error: the question is shown without a photo.
type Resolver struct {
	root string
}

func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Resolve returns the file path for ref, or false when it does not exist or
// would escape the root directory.
func (r *Resolver) Resolve(ref string) (string, bool) {
	if r == nil || r.root == "" || ref == "" {
		return "", false
	}
	clean := filepath.Clean("/" + filepath.FromSlash(ref))
	path := filepath.Join(r.root, clean)
	if rel, err := filepath.Rel(r.root, path); err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// Root returns the configured image directory.
func (r *Resolver) Root() string { return r.root }
