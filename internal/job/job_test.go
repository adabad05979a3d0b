package job

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/mediastitch/internal/utils"
)

func TestPartsReverseCompletion(t *testing.T) {
	p := NewParts(4)
	for i := 3; i >= 1; i-- {
		p.Set(i, []byte{byte(i)})
		assert.Zero(t, p.ContiguousCount())
	}
	p.Set(0, []byte{0})
	assert.Equal(t, 4, p.ContiguousCount())
	all, complete := p.All()
	assert.True(t, complete)
	assert.Equal(t, [][]byte{{0}, {1}, {2}, {3}}, all)
}

func TestPartsPrefixWaitsForGap(t *testing.T) {
	p := NewParts(10)
	for _, i := range []int{0, 1, 2, 5} {
		p.Set(i, []byte{byte(i)})
	}
	assert.Equal(t, 3, p.ContiguousCount())
	assert.Equal(t, 4, p.Done())
	assert.Equal(t, [][]byte{{0}, {1}, {2}}, p.Prefix())

	p.Set(3, []byte{3})
	assert.Equal(t, 4, p.ContiguousCount())
	p.Set(4, []byte{4})
	assert.Equal(t, 6, p.ContiguousCount())

	p.Set(42, []byte{1})
	p.Set(-1, []byte{1})
	assert.Equal(t, 6, p.Done())
	_, complete := p.All()
	assert.False(t, complete)
}

func TestJobLifecycle(t *testing.T) {
	j := New("k", "https://x/a.m3u8")
	require.NotEmpty(t, j.ID)
	assert.Equal(t, Idle, j.State())

	ctx, err := j.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, j.State())

	_, err = j.Start(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	res := &utils.Result{Filename: "videos/a.mp4"}
	assert.True(t, j.Finish(ctx, res))
	assert.Equal(t, Succeeded, j.State())
	assert.Same(t, res, j.Result())
	assert.Error(t, ctx.Err())

	// a finished job can run again
	_, err = j.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, j.Result())
}

func TestJobStopDropsRun(t *testing.T) {
	j := New("k", "u")
	ctx, err := j.Start(context.Background())
	require.NoError(t, err)
	j.SetProgress(&Progress{Parts: NewParts(3)})
	require.NotNil(t, j.Progress())

	j.Stop()
	assert.Equal(t, Idle, j.State())
	assert.Nil(t, j.Progress())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// the stopped run cannot publish a late result
	assert.False(t, j.Finish(ctx, &utils.Result{}))
	assert.Nil(t, j.Result())

	ctx2, err := j.Start(context.Background())
	require.NoError(t, err)
	assert.NoError(t, ctx2.Err())
}

func TestJobFail(t *testing.T) {
	j := New("k", "u")
	ctx, _ := j.Start(context.Background())
	j.Fail(ctx, fmt.Errorf("download: %w", utils.ErrCancelled))
	assert.Equal(t, Idle, j.State())
	assert.NoError(t, j.Err())
	assert.Equal(t, "stopped", j.Status())

	ctx, _ = j.Start(context.Background())
	prog := &Progress{Parts: NewParts(2)}
	prog.Parts.Set(0, []byte{1})
	j.SetProgress(prog)
	j.Fail(ctx, utils.ErrNetwork)
	assert.ErrorIs(t, j.Err(), utils.ErrNetwork)
	assert.Equal(t, "failed", j.Status())
	// the downloaded prefix survives the failure
	assert.Same(t, prog, j.Progress())

	_, err := j.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, j.Progress())
}

func TestJobClearIsTerminal(t *testing.T) {
	j := New("k", "u")
	ctx, _ := j.Start(context.Background())
	j.Clear()
	assert.Equal(t, Cleared, j.State())
	assert.Error(t, ctx.Err())

	_, err := j.Start(context.Background())
	assert.ErrorIs(t, err, ErrCleared)
	j.Stop()
	assert.Equal(t, Cleared, j.State())
}

func TestJobFallbackOnce(t *testing.T) {
	j := New("k", "u")
	_, _ = j.Start(context.Background())
	assert.True(t, j.MarkFallback())
	assert.False(t, j.MarkFallback())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Ensure("a", "ua")
	b := r.Ensure("b", "ub")
	assert.Same(t, a, r.Ensure("a", "other"))
	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, []*Job{a, b}, r.List())

	ctx, _ := a.Start(context.Background())
	r.Clear()
	assert.Error(t, ctx.Err())
	for _, j := range r.List() {
		assert.Equal(t, Cleared, j.State())
	}
}

func TestGate(t *testing.T) {
	var g Gate
	require.NoError(t, g.Wait(context.Background()))

	g.Pause()
	assert.True(t, g.Paused())
	released := make(chan error, 1)
	go func() { released <- g.Wait(context.Background()) }()

	select {
	case <-released:
		t.Fatal("wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}
	g.Resume()
	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after resume")
	}

	assert.True(t, g.Toggle())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.Canceled)
	assert.False(t, g.Toggle())
	assert.False(t, g.Paused())
}
