package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanofslack/adguard-dns-sync/internal/trigger"
)

type MockQueue struct {
	mu      sync.Mutex
	reasons []string
}

func (m *MockQueue) Fire(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
}

func (m *MockQueue) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reasons)
}

func startWatcher(t *testing.T, path string, q Firer) {
	t.Helper()
	w, err := New(path, q)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcherFiresOnCreateAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamic.yml")
	q := &MockQueue{}
	startWatcher(t, path, q)

	require.NoError(t, os.WriteFile(path, []byte("http: {}\n"), 0o644))

	assert.Eventually(t, func() bool { return q.count() > 0 }, 2*time.Second, 10*time.Millisecond)
	q.mu.Lock()
	assert.Equal(t, trigger.ReasonConfigChanged, q.reasons[0])
	q.mu.Unlock()
}

func TestWatcherFiresOnAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamic.yml")
	require.NoError(t, os.WriteFile(path, []byte("http: {}\n"), 0o644))
	q := &MockQueue{}
	startWatcher(t, path, q)

	tmp := filepath.Join(dir, ".dynamic.yml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("http: {routers: {}}\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return q.count() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamic.yml")
	q := &MockQueue{}
	startWatcher(t, path, q)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "static.yml"), []byte("x: 1\n"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, q.count())
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dynamic.yml"), &MockQueue{})
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	w := &Watcher{path: "/config/dynamic.yml"}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: "/config/dynamic.yml", Op: fsnotify.Write}, want: true},
		{name: "create", event: fsnotify.Event{Name: "/config/dynamic.yml", Op: fsnotify.Create}, want: true},
		{name: "rename", event: fsnotify.Event{Name: "/config/dynamic.yml", Op: fsnotify.Rename}, want: true},
		{name: "chmod", event: fsnotify.Event{Name: "/config/dynamic.yml", Op: fsnotify.Chmod}, want: false},
		{name: "remove", event: fsnotify.Event{Name: "/config/dynamic.yml", Op: fsnotify.Remove}, want: false},
		{name: "other file", event: fsnotify.Event{Name: "/config/static.yml", Op: fsnotify.Write}, want: false},
		{name: "unclean path", event: fsnotify.Event{Name: "/config//dynamic.yml", Op: fsnotify.Write}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}
