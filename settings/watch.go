// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package settings

import (
	"context"
	"log/slog"
	"path/filepath"

	"cogentcore.org/core/base/errors"
	"github.com/fsnotify/fsnotify"
)

// Watch watches the given settings file, and calls fn with the
// reloaded settings each time it is written, until ctx is done.
// The directory is watched rather than the file, so that editors
// that replace the file on save are seen. fn is called on the
// watcher goroutine.
func Watch(ctx context.Context, filename string, fn func(s *Settings)) error {
	abs, err := filepath.Abs(filename)
	if errors.Log(err) != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if errors.Log(err) != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); errors.Log(err) != nil {
		w.Close()
		return err
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				s, err := Open(abs)
				if err != nil {
					continue
				}
				slog.Info("settings: reloaded", "file", abs)
				fn(s)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("settings.Watch", "err", err)
			}
		}
	}()
	return nil
}
