package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestFileLoader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models/coupe.glb", "coupe")
	l := FileLoader{Root: root}
	ctx := context.Background()

	data, err := l.Load(ctx, "models/coupe.glb")
	require.NoError(t, err)
	assert.Equal(t, "coupe", string(data))

	data, err = l.Load(ctx, "models/./coupe.glb")
	require.NoError(t, err)
	assert.Equal(t, "coupe", string(data))

	_, err = l.Load(ctx, "models/truck.glb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileLoader_RejectsEscapes(t *testing.T) {
	l := FileLoader{Root: t.TempDir()}
	for _, ref := range []string{"", ".", "../secret", "models/../../secret", "/etc/passwd", `models\coupe.glb`} {
		_, err := l.Load(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidRef, ref)
	}
}

func TestFileLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FileLoader{Root: t.TempDir()}.Load(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAsync(t *testing.T) {
	l := LoaderFunc(func(_ context.Context, ref string) ([]byte, error) {
		if ref == "bad" {
			return nil, ErrNotFound
		}
		return []byte(ref), nil
	})

	select {
	case res := <-LoadAsync(context.Background(), l, "coupe.glb"):
		require.NoError(t, res.Err)
		assert.Equal(t, "coupe.glb", res.Ref)
		assert.Equal(t, []byte("coupe.glb"), res.Data)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}

	ch := LoadAsync(context.Background(), l, "bad")
	res := <-ch
	assert.ErrorIs(t, res.Err, ErrNotFound)
	_, open := <-ch
	assert.False(t, open, "channel is closed after the result")
}

func TestLoadAll(t *testing.T) {
	var inFlight, peak atomic.Int32
	l := LoaderFunc(func(_ context.Context, ref string) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return []byte(ref), nil
	})

	out, err := LoadAll(context.Background(), l, 2, "a", "b", "c", "d")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}, out)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLoadAll_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	l := LoaderFunc(func(ctx context.Context, ref string) ([]byte, error) {
		if ref == "bad" {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return []byte(ref), nil
		}
	})

	start := time.Now()
	out, err := LoadAll(context.Background(), l, 0, "slow", "bad")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Less(t, time.Since(start), 2*time.Second)
}
