package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taljindergill78/FSE570/internal/entities"
)

type registryFile struct {
	Entities []entities.Entity `yaml:"entities"`
}

// LoadFile reads a YAML registry file:
//
//	entities:
//	  - entity_id: tesla_inc_cik_0001318605
//	    name: Tesla, Inc.
//	    entity_type: public_company
//	    identifiers: {cik: "0001318605", make: TESLA}
//	    aliases: [Tesla, Tesla Motors]
func LoadFile(path string) ([]entities.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(rf.Entities))
	out := make([]entities.Entity, 0, len(rf.Entities))
	for _, e := range rf.Entities {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("invalid registry entry: %w", err)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entity id %q in %s", e.ID, path)
		}
		seen[e.ID] = struct{}{}
		e.Type = entities.ParseEntityType(string(e.Type))
		out = append(out, e)
	}
	return out, nil
}

// ReloadFile replaces the registry contents with the entities in path. On
// error the current contents are kept.
func (r *Registry) ReloadFile(path string) error {
	list, err := LoadFile(path)
	if err != nil {
		return err
	}
	r.Replace(list)
	return nil
}

// Watch reloads the registry whenever path changes, until ctx is done. The
// parent directory is watched so editors that save via rename are handled.
// Reload failures are logged and the previous contents stay in place.
func (r *Registry) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch registry directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Registry watch loop panicked", zap.Any("panic", rec))
			}
		}()
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.ReloadFile(path); err != nil {
					logger.Warn("Registry reload failed", zap.String("file", path), zap.Error(err))
					continue
				}
				logger.Info("Registry reloaded", zap.String("file", path), zap.Int("entities", r.Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Registry watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
