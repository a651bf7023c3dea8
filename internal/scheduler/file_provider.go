package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// taskInventory is the on-disk shape of the task file.
type taskInventory struct {
	Tasks []Task `yaml:"tasks"`
}

// FileProvider serves tasks from a YAML inventory file and refreshes its
// in-memory copy when the file changes. A failed reload keeps the last good
// inventory so a half-written file cannot empty the task set.
type FileProvider struct {
	path        string
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
	tasks       []Task
	lastModTime time.Time
}

// NewFileProvider loads the inventory and begins watching it for changes.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{
		path:     path,
		stopChan: make(chan struct{}),
	}
	if err := p.reload(); err != nil {
		return nil, err
	}
	if stat, err := os.Stat(path); err == nil {
		p.lastModTime = stat.ModTime()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	p.watcher = watcher

	// Watch the directory, not the file: editors and config management
	// tools replace the file by rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to watch task inventory, falling back to polling")
		go p.pollForChanges()
		return p, nil
	}

	go p.watchForChanges()
	log.Info().Str("path", path).Msg("Watching task inventory for changes")
	return p, nil
}

// Tasks returns the current inventory.
func (p *FileProvider) Tasks(ctx context.Context) ([]Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tasks := make([]Task, len(p.tasks))
	copy(tasks, p.tasks)
	return tasks, nil
}

// Close stops the file watcher.
func (p *FileProvider) Close() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		if p.watcher != nil {
			p.watcher.Close()
		}
	})
}

func (p *FileProvider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read task inventory: %w", err)
	}
	var inventory taskInventory
	if err := yaml.Unmarshal(data, &inventory); err != nil {
		return fmt.Errorf("parse task inventory %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.tasks = inventory.Tasks
	p.mu.Unlock()
	return nil
}

func (p *FileProvider) watchForChanges() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Small delay so a writer finishes before we read.
			time.Sleep(100 * time.Millisecond)
			p.reloadLogged()
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Task inventory watcher error")
		case <-p.stopChan:
			return
		}
	}
}

func (p *FileProvider) pollForChanges() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stat, err := os.Stat(p.path)
			if err != nil {
				continue
			}
			if stat.ModTime().After(p.lastModTime) {
				p.lastModTime = stat.ModTime()
				p.reloadLogged()
			}
		case <-p.stopChan:
			return
		}
	}
}

func (p *FileProvider) reloadLogged() {
	if err := p.reload(); err != nil {
		log.Warn().Err(err).Str("path", p.path).Msg("Task inventory reload failed, keeping previous inventory")
		return
	}
	p.mu.RLock()
	count := len(p.tasks)
	p.mu.RUnlock()
	log.Info().Str("path", p.path).Int("tasks", count).Msg("Task inventory reloaded")
}
