package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTuningFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fbmirror.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func startWatcher(t *testing.T, w *Watcher[SessionTuning]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := newTuningFile(t, "[session]\nfast_delay = \"200ms\"\n")

	received := make(chan SessionTuning, 1)
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](50*time.Millisecond))
	watcher.OnReload(func(cfg SessionTuning) {
		received <- cfg
	})
	startWatcher(t, watcher)

	if err := os.WriteFile(path, []byte("[session]\nfast_delay = \"400ms\"\npaused = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.FastDelay != 400*time.Millisecond || !cfg.Paused {
			t.Errorf("got %+v, want fast_delay=400ms paused=true", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_ReplaceByRename(t *testing.T) {
	path := newTuningFile(t, "[session]\nmax_delay = \"1s\"\n")

	received := make(chan SessionTuning, 4)
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](50*time.Millisecond))
	watcher.OnReload(func(cfg SessionTuning) {
		received <- cfg
	})
	startWatcher(t, watcher)

	// Editors commonly write a temp file and rename it over the original.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("[session]\nmax_delay = \"3s\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.MaxDelay != 3*time.Second {
			t.Errorf("MaxDelay = %v, want 3s", cfg.MaxDelay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload after rename")
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	var count atomic.Int32
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](20*time.Millisecond))
	watcher.OnReload(func(_ SessionTuning) {
		count.Add(1)
	})
	startWatcher(t, watcher)

	other := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(other, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reloads for unrelated files, got %d", got)
	}
}

func TestConfigWatcher_MultipleHandlers(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	r1 := make(chan SessionTuning, 1)
	r2 := make(chan SessionTuning, 1)
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](50*time.Millisecond))
	watcher.OnReload(func(cfg SessionTuning) { r1 <- cfg })
	watcher.OnReload(func(cfg SessionTuning) { r2 <- cfg })
	startWatcher(t, watcher)

	if err := os.WriteFile(path, []byte("[session]\ndelay_step = \"50ms\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []chan SessionTuning{r1, r2} {
		select {
		case cfg := <-ch:
			if cfg.DelayStep != 50*time.Millisecond {
				t.Errorf("handler %d: DelayStep = %v, want 50ms", i+1, cfg.DelayStep)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("handler %d: timeout", i+1)
		}
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	var count atomic.Int32
	kept := make(chan SessionTuning, 1)
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](50*time.Millisecond))
	unsub := watcher.OnReload(func(_ SessionTuning) { count.Add(1) })
	watcher.OnReload(func(cfg SessionTuning) { kept <- cfg })
	unsub()
	startWatcher(t, watcher)

	if err := os.WriteFile(path, []byte("[session]\npaused = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for remaining handler")
	}
	if got := count.Load(); got != 0 {
		t.Errorf("unsubscribed handler called %d times", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	errorReceived := make(chan error, 1)
	configReceived := make(chan SessionTuning, 1)
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](50*time.Millisecond),
		WithErrorHandler[SessionTuning](func(err error) {
			errorReceived <- err
		}),
	)
	watcher.OnReload(func(cfg SessionTuning) {
		configReceived <- cfg
	})
	startWatcher(t, watcher)

	if err := os.WriteFile(path, []byte("[session]\nfast_delay = \"later\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errorReceived:
		// Expected
	case <-configReceived:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	var count atomic.Int32
	var last atomic.Int64
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](200*time.Millisecond))
	watcher.OnReload(func(cfg SessionTuning) {
		count.Add(1)
		last.Store(int64(cfg.FastDelay))
	})
	startWatcher(t, watcher)

	// Rapid changes within debounce window
	for i := 1; i <= 5; i++ {
		content := fmt.Sprintf("[session]\nfast_delay = \"%dms\"\n", i*100)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := time.Duration(last.Load()); got != 500*time.Millisecond {
		t.Errorf("expected final fast_delay 500ms, got %v", got)
	}
}

func TestConfigWatcher_ThreadSafety(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](10*time.Millisecond))
	startWatcher(t, watcher)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := watcher.OnReload(func(_ SessionTuning) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	for i := range 10 {
		content := fmt.Sprintf("[session]\ndelay_step = \"%dms\"\n", i+1)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := newTuningFile(t, "[session]\n")

	var count atomic.Int32
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger(),
		WithDebounce[SessionTuning](50*time.Millisecond))
	watcher.OnReload(func(_ SessionTuning) {
		count.Add(1)
	})

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := watcher.Stop(); err != nil {
		t.Fatal(err)
	}

	// Changes after stop should not trigger handler
	if err := os.WriteFile(path, []byte("[session]\npaused = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}

func TestConfigWatcher_StartMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "fbmirror.toml")
	watcher := NewConfigWatcher(path, LoadSessionTuning, newTestLogger())
	if err := watcher.Start(); err == nil {
		_ = watcher.Stop()
		t.Fatal("Start should fail when the directory does not exist")
	}
}
