package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const (
	EventCreate = "create"
	EventModify = "modify"
	EventDelete = "delete"
)

// FileEvent 文件事件
type FileEvent struct {
	Type    string
	Path    string
	ModTime time.Time
}

type fileState struct {
	modTime time.Time
	size    int64
}

// FileWatcher 轮询目录树中的文件变化
// 首次扫描只建立基线，不产生事件
type FileWatcher struct {
	root     string
	exts     []string
	interval time.Duration
	callback func(event FileEvent)

	mu       sync.Mutex
	files    map[string]fileState
	stop     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher 创建监听器；exts 为空时监听全部文件
func NewFileWatcher(root string, interval time.Duration, exts []string, callback func(event FileEvent)) *FileWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &FileWatcher{
		root:     root,
		exts:     exts,
		interval: interval,
		callback: callback,
		files:    make(map[string]fileState),
		stop:     make(chan struct{}),
	}
}

// Start 启动监听
func (w *FileWatcher) Start() error {
	current, err := w.snapshot()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.files = current
	w.mu.Unlock()

	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.Scan(); err != nil {
					klog.Warningf("failed to scan formats directory %s: %v", w.root, err)
				}
			case <-w.stop:
				return
			}
		}
	}()
	klog.V(6).Infof("file watcher started: root=%s, interval=%v, files=%d", w.root, w.interval, len(current))
	return nil
}

// Stop 停止监听
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// Scan 对比上次扫描结果并回调变化
func (w *FileWatcher) Scan() error {
	current, err := w.snapshot()
	if err != nil {
		return err
	}

	w.mu.Lock()
	previous := w.files
	w.files = current
	w.mu.Unlock()

	var events []FileEvent
	for path, state := range current {
		old, exists := previous[path]
		if !exists {
			events = append(events, FileEvent{Type: EventCreate, Path: path, ModTime: state.modTime})
		} else if !state.modTime.Equal(old.modTime) || state.size != old.size {
			events = append(events, FileEvent{Type: EventModify, Path: path, ModTime: state.modTime})
		}
	}
	for path, state := range previous {
		if _, exists := current[path]; !exists {
			events = append(events, FileEvent{Type: EventDelete, Path: path, ModTime: state.modTime})
		}
	}
	for _, e := range events {
		w.callback(e)
	}
	return nil
}

func (w *FileWatcher) snapshot() (map[string]fileState, error) {
	current := make(map[string]fileState)
	if _, err := os.Stat(w.root); os.IsNotExist(err) {
		return current, nil
	}

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != w.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.matches(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		current[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return current, err
}

func (w *FileWatcher) matches(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.exts {
		if ext == e {
			return true
		}
	}
	return false
}
