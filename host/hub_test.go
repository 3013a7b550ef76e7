package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/cron"
	"github.com/goliatone/go-flow-designer/data"
	"github.com/goliatone/go-flow-designer/editor"
	"github.com/goliatone/go-flow-designer/store"
)

func TestHubOpenGetClose(t *testing.T) {
	hub := NewHub(WithHubLogger(designer.NewFmtLogger(nil)))
	ctx := context.Background()

	s, err := hub.Open(ctx)
	require.NoError(t, err)
	assert.False(t, s.Loaded())

	got, err := hub.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{s.ID()}, hub.IDs())

	require.NoError(t, hub.Close(ctx, s.ID()))
	assert.Zero(t, hub.Len())
	require.NoError(t, hub.Close(ctx, s.ID()), "closing twice is a no-op")

	_, err = hub.Get(s.ID())
	require.Error(t, err)
	assert.True(t, designer.HasCode(err, designer.CodeSessionNotFound))
}

func TestHubLoadsSampleFlow(t *testing.T) {
	hub := NewHub(WithHubLogger(designer.NewFmtLogger(nil)), WithSampleFlow(true))
	s, err := hub.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	assert.True(t, s.Loaded())
	assert.Equal(t, data.SampleFlowID, s.FlowID())
}

func TestHubSavesDirtySessionOnClose(t *testing.T) {
	logger := designer.NewFmtLogger(nil)
	st := store.NewMemoryStore()
	scheduler := cron.NewScheduler(cron.WithLogger(logger))
	saver := editor.NewAutosaver(st, scheduler, editor.WithSaveLogger(logger), editor.WithSaveInterval(time.Hour))
	hub := NewHub(WithHubLogger(logger), WithAutosaver(saver))
	ctx := context.Background()

	s, err := hub.Open(ctx, editor.WithID("fixed"))
	require.NoError(t, err)
	assert.Equal(t, 1, saver.Tracked())

	def, err := flowFromJSON(positionedFlow)
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx, def))
	require.NoError(t, s.Apply(ctx, editor.RemoveEdge{EdgeID: "e2"}))

	require.NoError(t, hub.Close(ctx, "fixed"))
	assert.Zero(t, saver.Tracked())

	rec, err := st.Load(ctx, "chain")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Version)
	assert.Len(t, rec.Definition.Edges, 1)
}

func TestHubShutdownClosesEverySession(t *testing.T) {
	hub := NewHub(WithHubLogger(designer.NewFmtLogger(nil)))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := hub.Open(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 3, hub.Len())
	require.NoError(t, hub.Shutdown(ctx))
	assert.Zero(t, hub.Len())
}
