package cmd

import (
	"errors"

	"github.com/Aman-CERP/issuesync/internal/config"
	"github.com/Aman-CERP/issuesync/internal/index"
	"github.com/Aman-CERP/issuesync/internal/searchindex"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// environment is everything a write command needs: the data directory lock,
// the store, the index and the indexer over them.
type environment struct {
	lock    *store.DirLock
	db      *store.DB
	index   *searchindex.Index
	writes  *searchindex.WriteSwitch
	indexer *index.Indexer
}

// openEnvironment takes the data directory lock and opens the store and the
// index. The bleve index on disk admits one process at a time.
func (o *rootOptions) openEnvironment() (*environment, error) {
	cfg := o.cfg
	env := &environment{lock: store.NewDirLock(config.DataDir(o.dir))}
	if err := env.lock.TryLock(); err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.StorePath(o.dir), store.Options{
		Driver:      cfg.Store.Driver,
		BusyTimeout: cfg.Store.BusyTimeoutDuration(),
		CacheMB:     cfg.Store.CacheMB,
	})
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	env.db = db

	env.writes = searchindex.NewWriteSwitch(cfg.Index.ReadOnly)
	idx, err := searchindex.Open(cfg.IndexPath(o.dir), searchindex.Options{Writes: env.writes})
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	env.index = idx

	env.indexer = index.NewIndexer(index.Config{
		DB:       env.db,
		Index:    env.index,
		Builder:  index.NewBuilder(cfg.Index.StandardsCacheSize),
		BulkSize: cfg.Index.BulkSize,
	})
	return env, nil
}

// Close closes the index and the store, then releases the lock.
func (e *environment) Close() error {
	var errs []error
	if e.index != nil {
		errs = append(errs, e.index.Close())
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
	}
	errs = append(errs, e.lock.Unlock())
	return errors.Join(errs...)
}
