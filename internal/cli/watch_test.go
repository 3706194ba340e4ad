package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchRecorder struct {
	changes []string
	errs    []error
}

// startLoop runs watchLoop in the background and returns its channels
// and a done channel closed when the loop returns.
func startLoop(ctx context.Context, relevant func(string) bool, rec *watchRecorder) (chan fsnotify.Event, chan error, chan struct{}) {
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(ctx, events, errs, relevant,
			func(name string) { rec.changes = append(rec.changes, name) },
			func(err error) { rec.errs = append(rec.errs, err) })
	}()
	return events, errs, done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not return")
	}
}

func TestWatchLoopFiltersEvents(t *testing.T) {
	rec := &watchRecorder{}
	relevant := func(name string) bool { return name == "defs.yaml" }
	events, _, done := startLoop(context.Background(), relevant, rec)

	events <- fsnotify.Event{Name: "other.yaml", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "defs.yaml", Op: fsnotify.Remove}
	events <- fsnotify.Event{Name: "defs.yaml", Op: fsnotify.Chmod}
	events <- fsnotify.Event{Name: "defs.yaml", Op: fsnotify.Write}
	close(events)
	waitDone(t, done)

	assert.Equal(t, []string{"defs.yaml"}, rec.changes)
}

func TestWatchLoopDebounces(t *testing.T) {
	rec := &watchRecorder{}
	events, _, done := startLoop(context.Background(), func(string) bool { return true }, rec)

	events <- fsnotify.Event{Name: "a", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "b", Op: fsnotify.Create}
	time.Sleep(watchDebounce + 50*time.Millisecond)
	events <- fsnotify.Event{Name: "c", Op: fsnotify.Write | fsnotify.Chmod}
	close(events)
	waitDone(t, done)

	assert.Equal(t, []string{"b", "c"}, rec.changes)
}

func TestWatchLoopCompilesAfterLastEventOfBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan fsnotify.Event)
	changes := make(chan time.Time, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(ctx, events, make(chan error), func(string) bool { return true },
			func(string) { changes <- time.Now() },
			func(error) {})
	}()

	// Editors often save as create then write.
	events <- fsnotify.Event{Name: "defs.yaml", Op: fsnotify.Create}
	time.Sleep(20 * time.Millisecond)
	events <- fsnotify.Event{Name: "defs.yaml", Op: fsnotify.Write}
	second := time.Now()

	select {
	case at := <-changes:
		assert.GreaterOrEqual(t, at.Sub(second), watchDebounce-10*time.Millisecond,
			"recompile must wait for the quiet period after the last write")
	case <-time.After(time.Second):
		t.Fatal("no recompile after the last write")
	}

	select {
	case <-changes:
		t.Fatal("one burst recompiled more than once")
	case <-time.After(2 * watchDebounce):
	}

	cancel()
	waitDone(t, done)
}

func TestWatchLoopReportsErrors(t *testing.T) {
	rec := &watchRecorder{}
	_, errs, done := startLoop(context.Background(), func(string) bool { return true }, rec)

	boom := errors.New("boom")
	errs <- boom
	close(errs)
	waitDone(t, done)

	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], boom)
}

func TestWatchLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, _, done := startLoop(ctx, func(string) bool { return true }, &watchRecorder{})

	cancel()
	waitDone(t, done)
}

func TestRelevantTo(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "defs.yaml")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	forFile := relevantTo(file)
	assert.True(t, forFile(file))
	assert.True(t, forFile(filepath.Join(dir, ".", "defs.yaml")))
	assert.False(t, forFile(filepath.Join(dir, "other.yaml")))

	forDir := relevantTo(dir)
	assert.True(t, forDir(filepath.Join(dir, "sub", "queries.cue")))
	assert.False(t, forDir(file))
}

func TestAddWatchPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, addWatchPaths(w, dir))

	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "sub")}, w.WatchList())
}

func TestWatchSessionReusesCache(t *testing.T) {
	src, err := os.ReadFile(projectsDefs)
	require.NoError(t, err)
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.yaml")
	require.NoError(t, os.WriteFile(path, src, 0644))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	s := &watchSession{
		opts: &CompileOptions{RootOptions: &RootOptions{Format: "text"}, OutDir: filepath.Join(dir, "out")},
		path: path,
		cmd:  cmd,
	}

	s.compile(context.Background())
	first := s.cache
	require.NotNil(t, first)
	assert.Contains(t, out.String(), "✓ Compiled 3 query(s)")

	s.compile(context.Background())
	assert.Same(t, first, s.cache)
	assert.Equal(t, int64(3), s.cache.Stats().Hits)
	assert.FileExists(t, filepath.Join(dir, "out", "by-name.aql"))

	changed := strings.Replace(string(src), "Text.Slug: SLUGIFY", "Text.Slug: MY::SLUG", 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0644))
	s.compile(context.Background())
	assert.NotSame(t, first, s.cache)
	assert.Contains(t, out.String(), "MY::SLUG(x.Name)")
	assert.Equal(t, 3, s.rounds)
}

func TestWatchSessionKeepsGoingOnErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collection: Project\nqueries:\n  - name: bad\n    pipeline: Root.Where(x => )\n"), 0644))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	s := &watchSession{opts: &CompileOptions{RootOptions: &RootOptions{Format: "text"}}, path: path, cmd: cmd}

	s.compile(context.Background())

	assert.Contains(t, out.String(), "E121")
	assert.Equal(t, 1, s.rounds)
}
