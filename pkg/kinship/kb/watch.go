package kb

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the session whenever the fact file is written by another
// process. Events are debounced; Watch blocks until ctx is done.
//
// Appends made through this session also fire events. Reloading after them
// is harmless since the file always holds every session fact.
func (s *Session) Watch(ctx context.Context, debounce time.Duration) error {
	path := s.Path()
	if path == "" {
		p, err := Locate(s.opts.Candidates)
		if err != nil {
			return err
		}
		path = p
	}
	base := filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	// Editors often replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(path))
	}
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.logger.Info("watching fact file", zap.String("path", path))

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				fire = time.After(debounce)
			}
		case <-fire:
			fire = nil
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			s.logger.Info("fact file reloaded", zap.String("path", path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", zap.Error(err))
		}
	}
}
