package perfcounter_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter/perfcountertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostSource() *perfcountertest.Source {
	src := perfcountertest.NewSource("host")
	src.Add("Processor", "_Total", "% Processor Time", 0, 12.5)
	src.Add("Processor", "0", "% Processor Time", 0, 10)
	src.Add("PhysicalDisk", "_Total", "Disk Reads/sec", 0, 4)
	src.Add("PhysicalDisk", "_Total", "Disk Writes/sec", 0, 8)
	src.Add("Memory", "", "Available MBytes", 2048)
	return src
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("matches names case-insensitively", func(t *testing.T) {
		h, err := perfcounter.Resolve(ctx, hostSource(), perfcounter.Path{
			Category: "processor",
			Instance: "_TOTAL",
			Counter:  "% processor time",
		})
		require.NoError(t, err)

		assert.Equal(t, perfcounter.Path{Category: "Processor", Instance: "_Total", Counter: "% Processor Time"}, h.Path)
		assert.Equal(t, "host", h.Source)
		assert.Equal(t, `\Processor(_Total)\% Processor Time`, h.String())

		v, err := h.NextValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
		v, err = h.NextValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 12.5, v)
	})

	t.Run("resolves single instance categories with an empty instance", func(t *testing.T) {
		h, err := perfcounter.Resolve(ctx, hostSource(), perfcounter.Path{Category: "Memory", Counter: "Available MBytes"})
		require.NoError(t, err)
		assert.Equal(t, `\Memory\Available MBytes`, h.String())
	})

	t.Run("first enumerated match wins", func(t *testing.T) {
		src := perfcountertest.NewSource("dupes")
		first := src.Add("Processor", "_Total", "% Processor Time", 1)
		src.Add("PROCESSOR", "_Total", "% Processor Time", 2)

		h, err := perfcounter.Resolve(ctx, src, perfcounter.Path{Category: "processor", Instance: "_Total", Counter: "% Processor Time"})
		require.NoError(t, err)
		assert.Equal(t, "Processor", h.Path.Category)

		_, err = h.NextValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Reads())
	})

	for _, tc := range []struct {
		name    string
		path    perfcounter.Path
		kind    perfcounter.Kind
		message string
	}{
		{
			name:    "missing category",
			path:    perfcounter.Path{Category: "LogicalDisk", Instance: "_Total", Counter: "Disk Reads/sec"},
			kind:    perfcounter.KindCategory,
			message: "LogicalDisk doesn't exist. Try running perfmon.exe to identify the correct LogicalDisk category.",
		},
		{
			name:    "missing instance",
			path:    perfcounter.Path{Category: "PhysicalDisk", Instance: "C:", Counter: "Disk Reads/sec"},
			kind:    perfcounter.KindInstance,
			message: "C: doesn't exist. Try running perfmon.exe to identify the correct C: instance.",
		},
		{
			name:    "missing counter",
			path:    perfcounter.Path{Category: "PhysicalDisk", Instance: "_Total", Counter: "Disk Bytes/sec"},
			kind:    perfcounter.KindCounter,
			message: "Disk Bytes/sec doesn't exist. Try running perfmon.exe to identify the correct Disk Bytes/sec counter.",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			src := hostSource()
			_, err := perfcounter.Resolve(ctx, src, tc.path)
			require.Error(t, err)

			assert.True(t, errors.Is(err, perfcounter.ErrNotFound))
			var nf *perfcounter.NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tc.kind, nf.Kind)
			assert.EqualError(t, err, tc.message)
			assert.Empty(t, src.Opened)
		})
	}

	t.Run("enumeration failures are not NotFound", func(t *testing.T) {
		src := hostSource()
		src.ListErr = errors.New("registry unavailable")

		_, err := perfcounter.Resolve(ctx, src, perfcounter.Path{Category: "Processor", Instance: "_Total", Counter: "% Processor Time"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, perfcounter.ErrNotFound))
		assert.Contains(t, err.Error(), "registry unavailable")
	})

	t.Run("read errors name the counter", func(t *testing.T) {
		src := hostSource()
		src.Add("Processor", "_Total", "% Idle Time").Err = errors.New("boom")

		h, err := perfcounter.Resolve(ctx, src, perfcounter.Path{Category: "Processor", Instance: "_Total", Counter: "% Idle Time"})
		require.NoError(t, err)
		_, err = h.NextValue(ctx)
		assert.EqualError(t, err, `could not read \Processor(_Total)\% Idle Time: boom`)
	})
}

func TestResolveOptional(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		src := hostSource()
		src.Add("SQLServer:Databases", "_Total", "Log Bytes Flushed/sec", 0, 512)

		res := perfcounter.ResolveOptional(ctx, src, perfcounter.Path{
			Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec",
		})
		require.True(t, res.Found())
		assert.NoError(t, res.Err)
		assert.Equal(t, "Log Bytes Flushed/sec", res.Handle.Path.Counter)
	})

	t.Run("not found is not fatal", func(t *testing.T) {
		res := perfcounter.ResolveOptional(ctx, hostSource(), perfcounter.Path{
			Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec",
		})
		assert.False(t, res.Found())
		assert.Nil(t, res.Handle)
		assert.True(t, errors.Is(res.Err, perfcounter.ErrNotFound))
		assert.Contains(t, res.Err.Error(), "SQLServer:Databases doesn't exist")
	})

	t.Run("source failures are not fatal either", func(t *testing.T) {
		src := hostSource()
		src.ListErr = errors.New("connection refused")
		res := perfcounter.ResolveOptional(ctx, src, perfcounter.Path{Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec"})
		assert.False(t, res.Found())
		assert.Contains(t, res.Err.Error(), "connection refused")
	})

	t.Run("blank path is not configured", func(t *testing.T) {
		src := hostSource()
		src.ListErr = errors.New("must not be called")
		res := perfcounter.ResolveOptional(ctx, src, perfcounter.Path{})
		assert.False(t, res.Found())
		assert.True(t, errors.Is(res.Err, perfcounter.ErrNotFound))
		assert.Equal(t, perfcounter.ErrNotConfigured, res.Err)
	})
}

func TestSources(t *testing.T) {
	ctx := context.Background()

	host := hostSource()
	sql := perfcountertest.NewSource("mssql")
	sql.Add("SQLServer:Databases", "_Total", "Log Bytes Flushed/sec", 0, 1024)
	sql.Add("Processor", "_Total", "% Processor Time", 99)

	src := perfcounter.Sources{host, sql}
	assert.Equal(t, "host+mssql", src.Name())

	cats, err := src.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Processor", "PhysicalDisk", "Memory", "SQLServer:Databases", "Processor"}, cats)

	t.Run("routes to the owning source", func(t *testing.T) {
		h, err := perfcounter.Resolve(ctx, src, perfcounter.Path{Category: "sqlserver:databases", Instance: "_total", Counter: "log bytes flushed/sec"})
		require.NoError(t, err)
		assert.Equal(t, "mssql", h.Source)
		assert.Equal(t, []perfcounter.Path{h.Path}, sql.Opened)
	})

	t.Run("earlier sources shadow later ones", func(t *testing.T) {
		h, err := perfcounter.Resolve(ctx, src, perfcounter.Path{Category: "Processor", Instance: "_Total", Counter: "% Processor Time"})
		require.NoError(t, err)
		assert.Equal(t, "host", h.Source)

		v, err := h.NextValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("unreachable sources are skipped", func(t *testing.T) {
		broken := perfcountertest.NewSource("broken")
		broken.ListErr = errors.New("dial tcp db:1433: connection refused")
		withBroken := perfcounter.Sources{host, broken}

		cats, err := withBroken.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Processor", "PhysicalDisk", "Memory"}, cats)

		h, err := perfcounter.Resolve(ctx, withBroken, perfcounter.Path{Category: "PhysicalDisk", Instance: "_Total", Counter: "Disk Reads/sec"})
		require.NoError(t, err)
		assert.Equal(t, "host", h.Source)

		res := perfcounter.ResolveOptional(ctx, withBroken, perfcounter.Path{Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec"})
		assert.False(t, res.Found())
		assert.True(t, errors.Is(res.Err, perfcounter.ErrNotFound))
	})

	t.Run("enumeration errors are wrapped with the source when every source fails", func(t *testing.T) {
		broken := perfcountertest.NewSource("broken")
		broken.ListErr = errors.New("timeout")
		_, err := perfcounter.Sources{broken}.Categories(ctx)
		assert.EqualError(t, err, "could not list broken counter categories: timeout")
	})
}
