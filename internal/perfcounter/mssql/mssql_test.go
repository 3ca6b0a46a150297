package mssql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Source, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	src := New(db, 5*time.Second)
	t.Cleanup(func() {
		mock.ExpectClose()
		assert.NoError(t, src.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return src, mock
}

func setClock(t *testing.T, times ...time.Time) {
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}
}

func expectResolve(mock sqlmock.Sqlmock, objects []string, object, instance, counter string, counterType int64) {
	rows := sqlmock.NewRows([]string{"object_name"})
	for _, o := range objects {
		rows.AddRow(o)
	}
	mock.ExpectQuery(regexp.QuoteMeta(categoriesQuery)).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(instancesQuery)).
		WithArgs(object).
		WillReturnRows(sqlmock.NewRows([]string{"instance_name"}).AddRow("_Total").AddRow(instance))
	mock.ExpectQuery(regexp.QuoteMeta(countersQuery)).
		WithArgs(object, instance).
		WillReturnRows(sqlmock.NewRows([]string{"counter_name"}).AddRow("Log Flushes/sec").AddRow(counter))
	mock.ExpectQuery(regexp.QuoteMeta(counterTypeQuery)).
		WithArgs(object, instance, counter).
		WillReturnRows(sqlmock.NewRows([]string{"cntr_type"}).AddRow(counterType))
}

func expectValue(mock sqlmock.Sqlmock, object, instance, counter string, value int64, base ...int64) {
	rows := sqlmock.NewRows([]string{"counter_name", "cntr_value"}).AddRow(counter, value)
	for _, b := range base {
		rows.AddRow(baseCounterName(counter), b)
	}
	mock.ExpectQuery(regexp.QuoteMeta(valueQuery)).
		WithArgs(object, instance, counter, baseCounterName(counter)).
		WillReturnRows(rows)
}

func TestLogBytesFlushedRate(t *testing.T) {
	ctx := context.Background()
	src, mock := newMock(t)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	setClock(t, start, start.Add(2*time.Second))

	expectResolve(mock, []string{"SQLServer:Buffer Manager", "SQLServer:Databases"},
		"SQLServer:Databases", "shop", "Log Bytes Flushed/sec", perfCounterBulkCount)

	h, err := perfcounter.Resolve(ctx, src, perfcounter.Path{
		Category: "sqlserver:databases", Instance: "SHOP", Counter: "log bytes flushed/sec",
	})
	require.NoError(t, err)
	assert.Equal(t, perfcounter.Path{Category: "SQLServer:Databases", Instance: "shop", Counter: "Log Bytes Flushed/sec"}, h.Path)
	assert.Equal(t, "mssql", h.Source)

	expectValue(mock, "SQLServer:Databases", "shop", "Log Bytes Flushed/sec", 10000)
	v, err := h.NextValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	expectValue(mock, "SQLServer:Databases", "shop", "Log Bytes Flushed/sec", 14096)
	v, err = h.NextValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2048.0, v)
}

func TestNamedInstanceObjects(t *testing.T) {
	ctx := context.Background()
	src, mock := newMock(t)

	expectResolve(mock, []string{"MSSQL$SQLEXPRESS:Buffer Manager", "MSSQL$SQLEXPRESS:Databases"},
		"MSSQL$SQLEXPRESS:Databases", "_Total", "Log Bytes Flushed/sec", perfCounterBulkCount)

	h, err := perfcounter.Resolve(ctx, src, perfcounter.Path{
		Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec",
	})
	require.NoError(t, err)
	assert.Equal(t, "SQLServer:Databases", h.Path.Category)

	expectValue(mock, "MSSQL$SQLEXPRESS:Databases", "_Total", "Log Bytes Flushed/sec", 1)
	_, err = h.NextValue(ctx)
	require.NoError(t, err)
}

func TestFractionCounter(t *testing.T) {
	ctx := context.Background()
	src, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(counterTypeQuery)).
		WithArgs("SQLServer:Buffer Manager", "", "Buffer cache hit ratio").
		WillReturnRows(sqlmock.NewRows([]string{"cntr_type"}).AddRow(int64(perfLargeRawFraction)))

	r, err := src.Open(ctx, perfcounter.Path{Category: "SQLServer:Buffer Manager", Counter: "Buffer cache hit ratio"})
	require.NoError(t, err)

	expectValue(mock, "SQLServer:Buffer Manager", "", "Buffer cache hit ratio", 990, 1000)
	v, err := r.NextValue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 99.0, v, 1e-9)
}

func TestMissingCounterIsNotFound(t *testing.T) {
	ctx := context.Background()
	src, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(categoriesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"object_name"}).AddRow("SQLServer:Databases"))
	mock.ExpectQuery(regexp.QuoteMeta(instancesQuery)).
		WithArgs("SQLServer:Databases").
		WillReturnRows(sqlmock.NewRows([]string{"instance_name"}).AddRow("_Total"))
	mock.ExpectQuery(regexp.QuoteMeta(countersQuery)).
		WithArgs("SQLServer:Databases", "_Total").
		WillReturnRows(sqlmock.NewRows([]string{"counter_name"}).AddRow("Log Flushes/sec"))

	res := perfcounter.ResolveOptional(ctx, src, perfcounter.Path{
		Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec",
	})
	assert.False(t, res.Found())
	assert.True(t, errors.Is(res.Err, perfcounter.ErrNotFound))
}

func TestConnectionFailureIsAbsent(t *testing.T) {
	ctx := context.Background()
	src, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(categoriesQuery)).WillReturnError(errors.New("login failed for user 'sa'"))

	res := perfcounter.ResolveOptional(ctx, src, perfcounter.Path{
		Category: "SQLServer:Databases", Instance: "_Total", Counter: "Log Bytes Flushed/sec",
	})
	assert.False(t, res.Found())
	assert.False(t, errors.Is(res.Err, perfcounter.ErrNotFound))
	assert.Contains(t, res.Err.Error(), "login failed")
}

func TestConverter(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("raw", func(t *testing.T) {
		c := &converter{counterType: perfCounterLargeRawcount}
		assert.Equal(t, 17.0, c.next(counterValue{value: 17, at: start}))
	})

	t.Run("bulk count reset", func(t *testing.T) {
		c := &converter{counterType: perfCounterBulkCount}
		c.next(counterValue{value: 500, at: start})
		assert.Equal(t, 0.0, c.next(counterValue{value: 10, at: start.Add(time.Second)}))
	})

	t.Run("average bulk", func(t *testing.T) {
		c := &converter{counterType: perfAverageBulk}
		assert.Equal(t, 0.0, c.next(counterValue{value: 100, base: 10, at: start}))
		assert.Equal(t, 6.0, c.next(counterValue{value: 160, base: 20, at: start.Add(time.Second)}))
		assert.Equal(t, 0.0, c.next(counterValue{value: 160, base: 20, at: start.Add(2 * time.Second)}))
	})

	t.Run("fraction with zero base", func(t *testing.T) {
		c := &converter{counterType: perfLargeRawFraction}
		assert.Equal(t, 0.0, c.next(counterValue{value: 5}))
	})
}

func TestBaseCounterName(t *testing.T) {
	assert.Equal(t, "Buffer cache hit ratio base", baseCounterName("Buffer cache hit ratio"))
	assert.Equal(t, "Average Wait Time base", baseCounterName("Average Wait Time (ms)"))
}
