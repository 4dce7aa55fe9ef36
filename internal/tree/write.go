package tree

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WriteOptions control Write.
type WriteOptions struct {
	// Concurrency limits the number of files copied at once. Zero means
	// GOMAXPROCS.
	Concurrency int

	// OnStart is called with the number of files once it is known.
	OnStart func(files int)

	// OnFile is called after each file was written.
	OnFile func(path string)
}

// Write materializes the tree into dir, creating it if needed, and returns
// the paths of the written files. Existing files are overwritten.
func Write(ctx context.Context, fsys fs.FS, dir string, opts WriteOptions) ([]string, error) {
	var dirs, files []string
	if err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		} else {
			files = append(files, p)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read tree: %w", err)
	}

	if opts.OnStart != nil {
		opts.OnStart(len(files))
	}

	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(d)), 0o755); err != nil {
			return nil, err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := copyFile(fsys, f, filepath.Join(dir, filepath.FromSlash(f))); err != nil {
				return err
			}
			if opts.OnFile != nil {
				opts.OnFile(f)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return files, nil
}

func copyFile(fsys fs.FS, src, dst string) error {
	r, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return w.Close()
}
