package printers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaavedra/printscan/pkg/limiter"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/asaavedra/printscan/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock devuelve los instantes en orden; el último se repite
func steppingClock(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return t
	}
}

type captured struct {
	mu    sync.Mutex
	names []string
	fns   []tasks.Func
}

func (c *captured) Submit(name string, fn tasks.Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

func TestRevalidateRecordsCheckDurations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hpAgent(f.fake, "10.0.1.5", "PHB1234", "00 1A 2B 3C 4D 5E")
	p := f.addPrinter(t, "10.0.1.5")

	t0 := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	f.svc.now = steppingClock(t0, t0.Add(1500*time.Millisecond))

	require.NoError(t, f.svc.Revalidate(ctx, RevalidateRequest{PrinterID: p.ID}))

	got := f.reload(t, p.ID)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, got.LastCheckedAt.Equal(t0.Add(1500*time.Millisecond)))
	require.NotNil(t, got.LastCheckDurationMs)
	assert.Equal(t, int64(1500), *got.LastCheckDurationMs)
	require.NotNil(t, got.AvgCheckDurationMs)
	assert.Equal(t, int64(1500), *got.AvgCheckDurationMs)
	assert.Equal(t, "PHB1234", store.Text(got.Serial))

	t1 := t0.Add(24 * time.Hour)
	f.svc.now = steppingClock(t1, t1.Add(500*time.Millisecond))

	require.NoError(t, f.svc.Revalidate(ctx, RevalidateRequest{PrinterID: p.ID}))

	got = f.reload(t, p.ID)
	assert.Equal(t, int64(500), *got.LastCheckDurationMs)
	assert.Equal(t, int64(1300), *got.AvgCheckDurationMs)
}

func TestRevalidateUnreachableStillRecordsCheck(t *testing.T) {
	f := newFixture(t)
	p := f.addPrinter(t, "10.0.1.6")

	require.NoError(t, f.svc.Revalidate(context.Background(), RevalidateRequest{PrinterID: p.ID}))

	got := f.reload(t, p.ID)
	assert.False(t, got.IsActive)
	assert.NotNil(t, got.LastCheckedAt)
	assert.NotNil(t, got.AvgCheckDurationMs)
}

func TestRevalidateMissingPrinter(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.svc.Revalidate(context.Background(), RevalidateRequest{PrinterID: 42}))
	assert.Empty(t, f.fake.Calls())
}

func TestRevalidateRespectsSubnetGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addPrinter(t, "10.0.1.7")

	release, err := f.guard.Acquire(ctx, "lab", 1)
	require.NoError(t, err)

	err = f.svc.Revalidate(ctx, RevalidateRequest{PrinterID: p.ID, Subnet: "lab", MaxConcurrent: 1})
	var retry *limiter.RetryLaterError
	require.ErrorAs(t, err, &retry)
	assert.Equal(t, limiter.DefaultRetryAfter, retry.After)

	var deferrer tasks.Deferrer
	assert.True(t, errors.As(err, &deferrer))
	assert.Nil(t, f.reload(t, p.ID).LastCheckedAt)

	release()

	require.NoError(t, f.svc.Revalidate(ctx, RevalidateRequest{PrinterID: p.ID, Subnet: "lab", MaxConcurrent: 1}))
	assert.NotNil(t, f.reload(t, p.ID).LastCheckedAt)

	counter, found, err := f.kv.Get(ctx, limiter.KeyPrefix+"lab")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "0", string(counter))
}

func TestRevalidateAllQueuesInIDOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.addPrinter(t, "10.0.1.10")
	f.addPrinter(t, "10.0.1.11")
	f.addPrinter(t, "10.0.1.12")

	sub := &captured{}
	n, err := f.svc.RevalidateAll(ctx, sub, "lab", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{
		"revalidate printer 1",
		"revalidate printer 2",
		"revalidate printer 3",
	}, sub.names)

	require.NoError(t, sub.fns[0](ctx))
	assert.NotNil(t, f.reload(t, first.ID).LastCheckedAt)
}

func TestMarkStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	f.store.SetClock(func() time.Time { return now.Add(-10 * 24 * time.Hour) })
	neverChecked := f.addPrinter(t, "10.0.2.1")
	checkedRecently := f.addPrinter(t, "10.0.2.2")
	checkedLongAgo := f.addPrinter(t, "10.0.2.3")

	f.store.SetClock(func() time.Time { return now.Add(-24 * time.Hour) })
	recent := f.addPrinter(t, "10.0.2.4")

	require.NoError(t, f.store.UpdateFields(ctx, checkedRecently.ID, store.Fields{store.FieldLastCheckedAt: now.Add(-time.Hour)}))
	require.NoError(t, f.store.UpdateFields(ctx, checkedLongAgo.ID, store.Fields{store.FieldLastCheckedAt: now.Add(-8 * 24 * time.Hour)}))

	changed, err := f.svc.MarkStale(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	assert.False(t, f.reload(t, neverChecked.ID).IsActive)
	assert.True(t, f.reload(t, checkedRecently.ID).IsActive)
	assert.False(t, f.reload(t, checkedLongAgo.ID).IsActive)
	assert.True(t, f.reload(t, recent.ID).IsActive)

	changed, err = f.svc.MarkStale(ctx, now, 12*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.False(t, f.reload(t, recent.ID).IsActive)
}

func TestRefreshIdentities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hpAgent(f.fake, "10.0.3.1", "SER-A", "00 1A 2B 3C 4D 01")
	hpAgent(f.fake, "10.0.3.2", "SER-B", "00 1A 2B 3C 4D 02")

	known := f.addPrinter(t, "10.0.3.1")
	require.NoError(t, f.store.UpdateFields(ctx, known.ID, store.Fields{
		store.FieldMAC:         "00:1a:2b:3c:4d:01",
		store.FieldSerial:      "SER-A",
		store.FieldSysObjectID: "SNMPv2-SMI::enterprises.11.2.3.9.1",
	}))
	empty := f.addPrinter(t, "10.0.3.2")
	f.addPrinter(t, "10.0.3.3")

	report, err := f.svc.RefreshIdentities(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{Total: 2, Processed: 2}, report)
	assert.Equal(t, "SER-B", store.Text(f.reload(t, empty.ID).Serial))
	assert.Nil(t, f.reload(t, known.ID).Brand)

	report, err = f.svc.WithRefreshWorkers(1).RefreshIdentities(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{Total: 3, Processed: 3}, report)
	assert.Equal(t, "hp", store.Text(f.reload(t, known.ID).Brand))
}
