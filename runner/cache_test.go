package runner

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/botscript/vm"
)

func artifact(id string) func() (*vm.Artifact, error) {
	return func() (*vm.Artifact, error) {
		return &vm.Artifact{ID: id, Image: []byte(id)}, nil
	}
}

func TestCompileCacheReuses(t *testing.T) {
	c, err := NewCompileCache(true, 0)
	require.NoError(t, err)

	first, err := c.GetOrCompile(1, artifact("one"))
	require.NoError(t, err)
	second, err := c.GetOrCompile(1, func() (*vm.Artifact, error) {
		t.Fatal("compiled a cached hash")
		return nil, nil
	})
	require.NoError(t, err)
	require.Same(t, first, second)
	require.True(t, c.Contains(1))
	require.Equal(t, CacheStats{Hits: 1, Compiles: 1}, c.Stats())
}

func TestCompileCacheDisabled(t *testing.T) {
	c, err := NewCompileCache(false, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.GetOrCompile(7, artifact("seven"))
		require.NoError(t, err)
	}
	require.Zero(t, c.Len())
	require.Equal(t, 3, c.Stats().Compiles)

	c.SetEnabled(true)
	require.True(t, c.Enabled())
	_, err = c.GetOrCompile(7, artifact("seven"))
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
}

func TestCompileCacheSkipsFailures(t *testing.T) {
	c, err := NewCompileCache(true, 0)
	require.NoError(t, err)
	boom := errors.New("boom")

	_, err = c.GetOrCompile(3, func() (*vm.Artifact, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, c.Contains(3))

	_, err = c.GetOrCompile(3, artifact("three"))
	require.NoError(t, err)
	require.Equal(t, CacheStats{Compiles: 2, Failures: 1}, c.Stats())
}

func TestCompileCacheSerializesCompilation(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		t.Run(fmt.Sprintf("enabled=%t", enabled), func(t *testing.T) {
			c, err := NewCompileCache(enabled, 0)
			require.NoError(t, err)

			var active, peak atomic.Int32
			var g errgroup.Group
			for h := uint64(1); h <= 8; h++ {
				g.Go(func() error {
					_, err := c.GetOrCompile(h, func() (*vm.Artifact, error) {
						n := active.Add(1)
						for {
							p := peak.Load()
							if n <= p || peak.CompareAndSwap(p, n) {
								break
							}
						}
						time.Sleep(5 * time.Millisecond)
						active.Add(-1)
						return artifact(fmt.Sprint(h))()
					})
					return err
				})
			}
			require.NoError(t, g.Wait())
			require.EqualValues(t, 1, peak.Load())
			require.Equal(t, 8, c.Stats().Compiles)
		})
	}
}

func TestCompileCacheBounded(t *testing.T) {
	c, err := NewCompileCache(true, 2)
	require.NoError(t, err)

	for h := uint64(1); h <= 3; h++ {
		_, err := c.GetOrCompile(h, artifact(fmt.Sprint(h)))
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.Capacity())
	require.Equal(t, 2, c.Len())
	require.False(t, c.Contains(1))
	require.True(t, c.Contains(3))
	require.Equal(t, 1, c.Stats().Evictions)

	c.Purge()
	require.Zero(t, c.Len())
	require.Equal(t, 1, c.Stats().Evictions)
}

func TestCompileCacheReferenceCounting(t *testing.T) {
	c, err := NewCompileCache(true, 0)
	require.NoError(t, err)
	_, err = c.GetOrCompile(1, artifact("one"))
	require.NoError(t, err)

	require.Same(t, c, c.Retain())
	require.Equal(t, 2, c.Refs())

	c.Release()
	require.Equal(t, 1, c.Len())

	c.Release()
	require.Zero(t, c.Refs())
	require.Zero(t, c.Len())

	c.Release()
	require.Zero(t, c.Refs())
}

func TestRunnersShareCache(t *testing.T) {
	reg := NewRegistry()
	cache, err := NewCompileCache(true, 0)
	require.NoError(t, err)

	a := NewVM(cache, reg)
	b := NewVM(cache, reg)
	cache.Release()
	require.Equal(t, 2, cache.Refs())

	lines := []string{"//MCCScript 1.0", "return 1;"}
	_, err = a.Run(nil, lines, nil, false, "a")
	require.NoError(t, err)
	_, err = b.Run(nil, lines, nil, false, "b")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Stats().Compiles)

	a.Close()
	require.Equal(t, 1, cache.Len())
	b.Close()
	require.Zero(t, cache.Len())
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestScriptErrorKinds(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("context: %w", newError(FileReadError, cause))

	require.Equal(t, "context: disk on fire", err.Error())
	require.True(t, IsKind(err, FileReadError))
	require.False(t, IsKind(err, LoadError))
	require.ErrorIs(t, err, cause)

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, "FileReadError", kind.String())

	_, ok = KindOf(cause)
	require.False(t, ok)

	require.Equal(t, "InvalidScript", InvalidScript.String())
	require.Equal(t, "LoadError", LoadError.String())
	require.Equal(t, "RuntimeError", RuntimeError.String())
}
