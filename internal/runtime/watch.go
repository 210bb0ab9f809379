package runtime

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 120 * time.Millisecond

// Watch installs an fsnotify watcher on the config file's directory and
// the workflows directory; any create/write/rename/remove event triggers a
// 120ms debounce, after which every pending event collapses into a single
// ApplyFromDisk call. Reloads are serialized through one goroutine so a
// burst of filesystem events (an editor's atomic save, a rsync) never
// launches concurrent reloads racing on s.mu.
func (s *Supervisor) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := map[string]struct{}{}
	if s.paths.ConfigFile != "" {
		dirs[filepath.Dir(s.paths.ConfigFile)] = struct{}{}
	}
	if s.paths.WorkflowsDir != "" {
		dirs[s.paths.WorkflowsDir] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	go s.debounceLoop(ctx, watcher)
	return nil
}

func (s *Supervisor) debounceLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	timer := time.NewTimer(debounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	var pendingReason string

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			pendingReason = "watch: " + ev.Name
			pending = true
			timer.Reset(debounceInterval)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("runtime: watch error", "error", err)
		case <-timer.C:
			if pending {
				pending = false
				if err := s.ApplyFromDisk(pendingReason); err != nil {
					slog.Error("runtime: reload failed, keeping previous snapshot", "error", err)
				}
			}
		}
	}
}
