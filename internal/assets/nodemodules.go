package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	lru "github.com/hashicorp/golang-lru"
)

var nodeModulePattern = regexp.MustCompile(`^node_modules/((@[^/]+/)?[^/]+)/`)

// NodeModuleName returns the package name of a node_modules/ import path,
// scoped names included.
func NodeModuleName(p string) (string, bool) {
	m := nodeModulePattern.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	return m[1], true
}

const resolverCacheSize = 256

// Resolver finds installed package directories the way node does: walking
// up from a base directory, looking into every node_modules/ on the way.
type Resolver struct {
	root  string
	cache *lru.Cache
}

// NewResolver resolves relative base directories against root.
func NewResolver(root string) *Resolver {
	cache, err := lru.New(resolverCacheSize)
	if err != nil {
		panic(err)
	}
	return &Resolver{root: root, cache: cache}
}

// Resolve returns the absolute, symlink free directory of package name as
// seen from basedir (the root if empty).
func (r *Resolver) Resolve(name, basedir string) (string, error) {
	if basedir == "" {
		basedir = r.root
	} else if !filepath.IsAbs(basedir) {
		basedir = filepath.Join(r.root, basedir)
	}

	basedir, err := filepath.Abs(basedir)
	if err != nil {
		return "", err
	}

	key := basedir + "\x00" + name
	if dir, ok := r.cache.Get(key); ok {
		return dir.(string), nil
	}

	for dir := basedir; ; {
		if filepath.Base(dir) != nodeModulesDir {
			candidate := filepath.Join(dir, nodeModulesDir, filepath.FromSlash(name))
			if _, err := os.Stat(filepath.Join(candidate, "package.json")); err == nil {
				resolved, err := filepath.EvalSymlinks(candidate)
				if err != nil {
					return "", err
				}
				r.cache.Add(key, resolved)
				return resolved, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("cannot find module %q from %s", name, basedir)
}
