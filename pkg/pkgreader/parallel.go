package pkgreader

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/qsync/internal/log"
)

// ReadAll reads the packages of many files with at most parallelism
// concurrent reads. Missing files are skipped; the query may list files
// that were deleted since. Results are keyed by the input path.
func ReadAll(ctx context.Context, r Reader, paths []string, parallelism int) (map[string]string, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(paths))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, p := range paths {
		g.Go(func() error {
			pkg, err := r.ReadPackage(gctx, p)
			if errors.Is(err, fs.ErrNotExist) {
				log.V(4).Debugw("source file missing", "path", p)
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out[p] = pkg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
