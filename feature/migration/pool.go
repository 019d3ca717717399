package migration

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/schema"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// dbPool keeps one adapter per database file for the duration of a run.
type dbPool struct {
	cfg    database.Config
	logger *zap.Logger

	mu       sync.RWMutex
	adapters map[string]*schema.Adapter
	sf       singleflight.Group
}

func newDBPool(cfg database.Config, logger *zap.Logger) *dbPool {
	return &dbPool{cfg: cfg, logger: logger, adapters: make(map[string]*schema.Adapter)}
}

// get opens the database at path once and detects its schema. Databases
// without a library table get the generic adapter. A missing file is an
// error; SQLite would otherwise create an empty database.
func (p *dbPool) get(path string) (*schema.Adapter, error) {
	key := filepath.Clean(path)

	p.mu.RLock()
	a, ok := p.adapters[key]
	p.mu.RUnlock()
	if ok {
		return a, nil
	}

	v, err, _ := p.sf.Do(key, func() (any, error) {
		p.mu.RLock()
		a, ok := p.adapters[key]
		p.mu.RUnlock()
		if ok {
			return a, nil
		}

		if _, err := os.Stat(key); err != nil {
			return nil, err
		}
		db, err := database.Connect(p.cfg, key)
		if err != nil {
			return nil, err
		}
		a, err = schema.Detect(db)
		if errors.Is(err, migerr.ErrUnsupportedSchema) {
			a, err = schema.NewGeneric(db)
		}
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		p.logger.Debug("database opened",
			zap.String("path", key),
			zap.String("variant", string(a.Variant())))

		p.mu.Lock()
		p.adapters[key] = a
		p.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.Adapter), nil
}

// close releases every open database.
func (p *dbPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for key, a := range p.adapters {
		err = multierr.Append(err, database.Close(a.DB()))
		delete(p.adapters, key)
	}
	return err
}
