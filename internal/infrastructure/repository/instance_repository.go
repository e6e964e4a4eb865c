// Package repository manages the configuration file and the per-instance
// Kafka clients, keeping clients in sync with the file on hot reload.
package repository

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
)

// InstanceRepository holds the loaded configuration and one offset client per
// instance.
type InstanceRepository struct {
	mu         sync.RWMutex
	clients    map[string]domain.OffsetClient
	configs    map[string]config.Instance
	configData config.FileConfig
	configPath string
	watcher    *fsnotify.Watcher
	factory    domain.ClientFactory
}

// NewInstanceRepository creates a new repository rooted at the given file.
func NewInstanceRepository(configPath string, factory domain.ClientFactory) *InstanceRepository {
	return &InstanceRepository{
		clients:    make(map[string]domain.OffsetClient),
		configs:    make(map[string]config.Instance),
		configPath: configPath,
		factory:    factory,
	}
}

// LoadFromFile loads the configuration file and reconciles clients.
func (r *InstanceRepository) LoadFromFile() error {
	cfg, err := config.ReadConfig(r.configPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.configData = cfg
	r.mu.Unlock()

	return r.reconcile(cfg)
}

// InitConfig returns the shared init_config block.
func (r *InstanceRepository) InitConfig() config.InitConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configData.InitConfig
}

// FindAll returns all configured instances.
func (r *InstanceRepository) FindAll() []config.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.Instance, len(r.configData.Instances))
	copy(out, r.configData.Instances)
	return out
}

// FindByID retrieves an instance configuration by id.
func (r *InstanceRepository) FindByID(id string) (config.Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.configs[id]
	return inst, ok
}

// GetClient returns the offset client for an instance.
func (r *InstanceRepository) GetClient(id string) (domain.OffsetClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Watch sets an fsnotify watcher on the config file for hot reload.
func (r *InstanceRepository) Watch() error {
	abs, err := filepath.Abs(r.configPath)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// watch the directory; editors replace files rather than write in place
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}
	r.watcher = w

	const debounceDelay = 350 * time.Millisecond

	go func() {
		reload := func() {
			for i := 0; i < 10; i++ {
				if _, err := os.Stat(abs); err == nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}

			utils.Logger.Info("config file changed", "path", abs)
			if err := r.LoadFromFile(); err != nil {
				utils.Logger.Error("failed to reload config", "err", err)
			}
		}

		var timer *time.Timer
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					if timer == nil {
						timer = time.AfterFunc(debounceDelay, reload)
					} else {
						if !timer.Stop() {
							select {
							case <-timer.C:
							default:
							}
						}
						timer.Reset(debounceDelay)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				utils.Logger.Error("fsnotify error", "err", err)
			}
		}
	}()

	return nil
}

// Close stops the watcher and closes every client.
func (r *InstanceRepository) Close() {
	if r.watcher != nil {
		r.watcher.Close()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}

// reconcile synchronizes clients with configuration: new instances get a
// client, changed instances get theirs replaced, removed ones are closed.
func (r *InstanceRepository) reconcile(cfg config.FileConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := make(map[string]struct{})
	for _, inst := range cfg.Instances {
		id := inst.ID()
		existing[id] = struct{}{}

		prev, ok := r.configs[id]
		if ok && instanceEqual(prev, inst) {
			continue
		}
		if ok {
			if old, has := r.clients[id]; has {
				old.Close()
				delete(r.clients, id)
			}
		}

		client, err := r.factory.CreateClient(inst, cfg.InitConfig)
		if err != nil {
			utils.Logger.Error("failed to create client", "instance", id, "err", err)
			delete(r.configs, id)
			continue
		}
		r.clients[id] = client
		r.configs[id] = inst
	}

	for id, client := range r.clients {
		if _, ok := existing[id]; !ok {
			client.Close()
			delete(r.clients, id)
			delete(r.configs, id)
		}
	}

	return nil
}

// instanceEqual decides whether an existing client needs to be recreated.
func instanceEqual(a, b config.Instance) bool {
	return reflect.DeepEqual(a, b)
}
