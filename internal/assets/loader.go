// Package assets fetches model bytes and describes the cars the viewer offers.
// Decoding model files is left to the renderer.
package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Loader fetches the raw bytes of an asset.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// LoaderFunc adapts a function into a Loader.
type LoaderFunc func(ctx context.Context, ref string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// Result is the outcome of one asynchronous load.
type Result struct {
	Ref  string
	Data []byte
	Err  error
}

// LoadAsync starts a load and returns a channel that receives exactly one
// Result and is then closed.
func LoadAsync(ctx context.Context, loader Loader, ref string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		data, err := loader.Load(ctx, ref)
		ch <- Result{Ref: ref, Data: data, Err: err}
	}()
	return ch
}

// LoadAll loads refs concurrently, at most limit at a time (no limit when
// limit <= 0). The first failure cancels the loads still running. Results are
// returned in the order of refs.
func LoadAll(ctx context.Context, loader Loader, limit int, refs ...string) ([][]byte, error) {
	out := make([][]byte, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, ref := range refs {
		g.Go(func() error {
			data, err := loader.Load(gctx, ref)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FileLoader reads assets from a directory. References are slash-separated
// paths relative to Root and may not leave it.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := cleanRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("read asset %s: %w", ref, err)
	}
	return data, nil
}

func cleanRef(ref string) (string, error) {
	if ref == "" || strings.ContainsRune(ref, '\\') || path.IsAbs(ref) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	name := path.Clean(ref)
	if !fs.ValidPath(name) || name == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return name, nil
}
