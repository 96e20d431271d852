package file

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ninja0404/whale-signal/pkg/config/source"
)

type watcher struct {
	f       *file
	fw      *fsnotify.Watcher
	exit    chan struct{}
	lastSum string
}

func newWatcher(f *file) (source.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// 监听目录，兼容编辑器的 rename + create 写法
	if err := fw.Add(filepath.Dir(f.path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &watcher{
		f:    f,
		fw:   fw,
		exit: make(chan struct{}),
	}, nil
}

func (w *watcher) Next() (*source.ChangeSet, error) {
	target := filepath.Clean(w.f.path)
	for {
		select {
		case <-w.exit:
			return nil, source.ErrWatcherStopped
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil, source.ErrWatcherStopped
			}
			return nil, err
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil, source.ErrWatcherStopped
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, err := os.Stat(w.f.path); err != nil {
				continue
			}

			cs, err := w.f.Read()
			if err != nil {
				return nil, err
			}
			// 内容未变化时忽略
			if cs.Checksum == w.lastSum {
				continue
			}
			w.lastSum = cs.Checksum
			return cs, nil
		}
	}
}

func (w *watcher) Stop() error {
	select {
	case <-w.exit:
		return nil
	default:
		close(w.exit)
	}
	return w.fw.Close()
}
