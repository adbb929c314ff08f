// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控数据目录, 视图文件写入或替换时回调
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	views    map[string]bool
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监控 dir 下的视图文件, views 为空时监控全部 .csv/.xlsx
func NewFileMonitor(dir string, views ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		views:    make(map[string]bool, len(views)),
	}
	for _, v := range views {
		m.views[v] = true
	}
	return m, nil
}

// Matches 文件名是否为受监控的视图文件
func (m *FileMonitor) Matches(name string) bool {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	supported := false
	for _, e := range Exts {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported || strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	if len(m.views) == 0 {
		return true
	}
	return m.views[strings.TrimSuffix(base, filepath.Ext(base))]
}

// Watch 阻塞直到 ctx 结束或监控出错
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !m.Matches(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if event.Name != m.lastFile || info.ModTime().After(m.lastMod) {
				m.lastMod = info.ModTime()
				m.lastFile = event.Name
				go handler(event.Name)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
