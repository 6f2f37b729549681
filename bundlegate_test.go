package bundlegate

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManageWithoutDependencyRunsAndAnnounces(t *testing.T) {
	reg := NewRegistry()

	var calls []string
	reg.MustManage(After("jquery"), Leaf, func() { calls = append(calls, "probe") })
	require.Equal(t, 1, reg.Pending("jquery"))

	ran := false
	require.NoError(t, reg.Manage(NoDependency, As("jquery"), func() {
		ran = true
		assert.False(t, reg.IsReady("jquery"), "bundle must not be ready while its own callback runs")
	}))

	assert.True(t, ran, "callback should run before Manage returns")
	assert.True(t, reg.IsReady("jquery"))
	assert.Equal(t, []string{"probe"}, calls, "listener should fire exactly once")
	assert.Equal(t, 0, reg.Pending("jquery"))
	assert.Equal(t, []string{"jquery"}, reg.Ready())
}

func TestManageDeferredUntilDependencyReady(t *testing.T) {
	reg := NewRegistry()

	var order []string
	require.NoError(t, reg.Manage(After("jquery"), As("owlCarousel"), func() {
		order = append(order, "owlCarousel")
	}))
	require.NoError(t, reg.Manage(After("owlCarousel"), Leaf, func() {
		order = append(order, "page")
	}))

	assert.Empty(t, order)
	assert.False(t, reg.IsReady("owlCarousel"))
	assert.Equal(t, 1, reg.Pending("jquery"))

	require.NoError(t, reg.Manage(NoDependency, As("jquery"), func() {
		order = append(order, "jquery")
	}))

	assert.Equal(t, []string{"jquery", "owlCarousel", "page"}, order)
	assert.True(t, reg.IsReady("owlCarousel"))
	assert.Equal(t, []string{"jquery", "owlCarousel"}, reg.Ready())
}

func TestManageDependencyAlreadyReadyRunsSynchronously(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Manage(NoDependency, As("jquery"), func() {}))

	ran := false
	require.NoError(t, reg.Manage(After("jquery"), As("owlCarousel"), func() { ran = true }))

	assert.True(t, ran)
	assert.True(t, reg.IsReady("owlCarousel"))
	assert.Equal(t, 0, reg.Pending("jquery"))
}

func TestManageNeverReadyDependencyLeavesListener(t *testing.T) {
	reg := NewRegistry()

	ran := false
	require.NoError(t, reg.Manage(After("unknownDep"), Leaf, func() { ran = true }))

	assert.False(t, ran)
	assert.Equal(t, 1, reg.Pending("unknownDep"))
	assert.False(t, reg.IsReady("unknownDep"))
	assert.Empty(t, reg.Ready())
}

func TestMarkReadyFiresOnce(t *testing.T) {
	reg := NewRegistry()

	var fired int32
	reg.OnceReady("jquery", func() { atomic.AddInt32(&fired, 1) })

	require.NoError(t, reg.Manage(NoDependency, As("jquery"), func() {}))
	require.NoError(t, reg.Manage(NoDependency, As("jquery"), func() {}))
	assert.False(t, reg.MarkReady("jquery"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.True(t, reg.IsReady("jquery"))
}

func TestOnceReadyReportsSynchronousRun(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.OnceReady("a", func() {}))
	assert.True(t, reg.MarkReady("a"))

	ran := false
	assert.True(t, reg.OnceReady("a", func() { ran = true }))
	assert.True(t, ran)
}

func TestMarkReadyDrainsInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		reg.OnceReady("base", func() { order = append(order, i) })
	}
	reg.MarkReady("base")
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestManageUsageErrors(t *testing.T) {
	reg := NewRegistry()

	err := reg.Manage(After(""), As("x"), func() {})
	require.Error(t, err)
	var nameErr EmptyNameError
	require.True(t, errors.As(err, &nameErr))
	assert.Equal(t, "dependency", nameErr.Field)

	err = reg.Manage(NoDependency, As(""), func() {})
	require.Error(t, err)
	require.True(t, errors.As(err, &nameErr))
	assert.Equal(t, "bundle", nameErr.Field)

	err = reg.Manage(NoDependency, As("x"), nil)
	require.Error(t, err)
	var cbErr NilCallbackError
	assert.True(t, errors.As(err, &cbErr))

	assert.False(t, reg.IsReady("x"), "rejected calls must not announce")
	assert.Empty(t, reg.Graph().Nodes)

	assert.Panics(t, func() {
		reg.MustManage(NoDependency, Leaf, nil)
	})
}

func TestManageConcurrentDependents(t *testing.T) {
	reg := NewRegistry()

	const n = 64
	var runs int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.Manage(After("core"), Leaf, func() {
				atomic.AddInt32(&runs, 1)
			}))
		}()
	}

	marked := make(chan struct{})
	go func() {
		defer close(marked)
		reg.MarkReady("core")
	}()
	wg.Wait()
	<-marked

	assert.Equal(t, int32(n), atomic.LoadInt32(&runs), "every dependent should run exactly once")
	assert.Equal(t, 0, reg.Pending("core"))
}

func TestWait(t *testing.T) {
	reg := NewRegistry()

	errCh := make(chan error, 1)
	go func() {
		errCh <- reg.Wait(context.Background(), "late")
	}()

	time.Sleep(10 * time.Millisecond)
	reg.MarkReady("late")

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after MarkReady")
	}

	require.NoError(t, reg.Wait(context.Background(), "late"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := reg.Wait(ctx, "never")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, reg.Pending("never"))
}

func TestRegistryGraph(t *testing.T) {
	reg := NewRegistry()
	reg.MustManage(After("jquery"), As("owlCarousel"), func() {})
	reg.MustManage(After("owlCarousel"), Leaf, func() {})

	graph := reg.Graph()
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, GraphEdge{From: "owlCarousel", To: "jquery"}, graph.Edges[0])
	assert.Equal(t, GraphNode{Name: "jquery", Pending: 1}, graph.Nodes[0])
	assert.Equal(t, GraphNode{Name: "owlCarousel", Pending: 1}, graph.Nodes[1])

	reg.MustManage(NoDependency, As("jquery"), func() {})
	graph = reg.Graph()
	assert.Equal(t, GraphNode{Name: "jquery", Ready: true}, graph.Nodes[0])
	assert.Equal(t, GraphNode{Name: "owlCarousel", Ready: true}, graph.Nodes[1])

	dot := graph.DOT()
	assert.Contains(t, dot, "digraph bundlegate")
	assert.Contains(t, dot, "n1 -> n0;")
	mermaid := graph.Mermaid()
	assert.Contains(t, mermaid, "graph TD")
	assert.Contains(t, mermaid, "n1 --> n0")
	assert.Contains(t, mermaid, "jquery (ready)")
}

func TestRegistryLogsAnnouncements(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	reg.MustManage(After("jquery"), Leaf, func() {})
	reg.MustManage(NoDependency, As("jquery"), func() {})
	reg.MarkReady("jquery")

	out := buf.String()
	assert.Contains(t, out, `"signal":"jqueryIsReady"`)
	assert.Contains(t, out, "listener queued")
	assert.Contains(t, out, "bundle ready")
	assert.Contains(t, out, "duplicate announcement ignored")
}

func TestSignalNameAndInputs(t *testing.T) {
	assert.Equal(t, "jqueryIsReady", SignalName("jquery"))

	name, ok := After("jquery").Name()
	assert.True(t, ok)
	assert.Equal(t, "jquery", name)
	_, ok = NoDependency.Name()
	assert.False(t, ok)
	assert.Equal(t, "<none>", NoDependency.String())

	_, ok = Leaf.Name()
	assert.False(t, ok)
	assert.Equal(t, "<leaf>", Leaf.String())
	assert.Equal(t, "owlCarousel", As("owlCarousel").String())
}
