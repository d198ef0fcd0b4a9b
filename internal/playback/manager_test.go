package playback

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	starts  atomic.Int32
	pauses  atomic.Int32
	resumes atomic.Int32
	stops   atomic.Int32

	onStop func()
}

func (f *fakeSource) Start()  { f.starts.Add(1) }
func (f *fakeSource) Pause()  { f.pauses.Add(1) }
func (f *fakeSource) Resume() { f.resumes.Add(1) }
func (f *fakeSource) Stop() {
	f.stops.Add(1)
	if f.onStop != nil {
		f.onStop()
	}
}

func TestRegisterStartsSource(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	source := &fakeSource{}

	handle := manager.Register(source)
	require.NotEmpty(t, handle.ID())
	require.Equal(t, int32(1), source.starts.Load())
	require.True(t, manager.IsPlaying())
	require.True(t, handle.Playing())
}

func TestRegisterPreemptsCurrentHandle(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	first := &fakeSource{}
	second := &fakeSource{}

	// isPlaying must hold true throughout the hand-over: the old source's
	// Stop runs inside the same critical section that installs the new
	// handle, so an observer inside Stop still sees a playing manager.
	first.onStop = func() {
		require.True(t, manager.IsPlaying())
	}

	firstHandle := manager.Register(first)
	secondHandle := manager.Register(second)

	require.Equal(t, int32(1), first.stops.Load())
	require.Equal(t, int32(1), second.starts.Load())
	require.True(t, manager.IsPlaying())
	require.False(t, firstHandle.Playing())
	require.True(t, secondHandle.Playing())
}

func TestStopAllForceStopsEveryHandle(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	first := &fakeSource{}
	second := &fakeSource{}
	manager.Register(first)
	manager.Register(second)

	manager.StopAll()

	require.False(t, manager.IsPlaying())
	require.Equal(t, int32(1), first.stops.Load())
	require.Equal(t, int32(1), second.stops.Load())
}

func TestNaturalCompletionMatchesExplicitStopForSubscribers(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)

	var viaComplete, viaStop []State
	record := func(sink *[]State) func(State) {
		return func(s State) { *sink = append(*sink, s) }
	}

	unsubscribe := manager.Subscribe(record(&viaComplete))
	completed := manager.Register(&fakeSource{})
	manager.Complete(completed.ID())
	unsubscribe()

	unsubscribe = manager.Subscribe(record(&viaStop))
	stopped := manager.Register(&fakeSource{})
	stopped.Stop()
	unsubscribe()

	require.Len(t, viaComplete, 2)
	require.Len(t, viaStop, 2)
	require.True(t, viaComplete[0].Playing)
	require.True(t, viaStop[0].Playing)
	require.Equal(t, State{}, viaComplete[1])
	require.Equal(t, State{}, viaStop[1])
}

func TestCompleteUnknownHandleIsNoop(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	notified := 0
	manager.Subscribe(func(State) { notified++ })

	manager.Complete("missing")
	require.Zero(t, notified)
	require.False(t, manager.IsPlaying())
}

func TestSubscribersNotifiedSynchronouslyOnRegister(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	var states []State
	manager.Subscribe(func(s State) { states = append(states, s) })

	handle := manager.Register(&fakeSource{})

	require.Len(t, states, 1)
	require.True(t, states[0].Playing)
	require.Equal(t, handle.ID(), states[0].HandleID)
}

func TestPauseResumeDelegatesToSource(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	source := &fakeSource{}
	handle := manager.Register(source)

	handle.Pause()
	handle.Resume()

	require.Equal(t, int32(1), source.pauses.Load())
	require.Equal(t, int32(1), source.resumes.Load())
	require.True(t, manager.IsPlaying(), "pause keeps the handle registered")
}

func TestStopAllWithoutHandlesDoesNotNotify(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	notified := 0
	manager.Subscribe(func(State) { notified++ })

	manager.StopAll()
	require.Zero(t, notified)
}
