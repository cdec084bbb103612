package charts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-memdb"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/log"
)

const tableChart = "chart"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableChart: {
			Name: tableChart,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
				"file": {
					Name:    "file",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "File"},
				},
			},
		},
	},
}

// Catalog indexes the MBTiles files of one directory.
type Catalog struct {
	dir string

	// serializes refreshes, readers go through memdb snapshots
	mu    sync.Mutex
	memDb *memdb.MemDB
}

func NewCatalog(dir string) (*Catalog, error) {
	memDb, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Catalog{dir: dir, memDb: memDb}, nil
}

func (c *Catalog) Dir() string {
	return c.dir
}

// Refresh rescans the directory. Files that fail to open are skipped and
// reported in the returned error; the rest of the catalog is still updated.
func (c *Catalog) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.Wrapf(err, "charts path %v", c.dir)
	}
	present := make(map[string]bool)
	var result error
	var replaced []*Chart

	txn := c.memDb.Txn(true)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Extension) {
			continue
		}
		file := filepath.Join(c.dir, entry.Name())
		present[file] = true
		if existing, _ := txn.First(tableChart, "file", file); existing != nil {
			continue
		}
		chart, err := Open(file)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if prev, _ := txn.First(tableChart, "id", chart.Name); prev != nil {
			log.Warn("chart %v shadows %v", file, prev.(*Chart).File)
			replaced = append(replaced, prev.(*Chart))
		}
		if err := txn.Insert(tableChart, chart); err != nil {
			chart.Close()
			result = multierror.Append(result, err)
		}
	}

	var stale []*Chart
	it, err := txn.Get(tableChart, "id")
	if err != nil {
		txn.Abort()
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if chart := raw.(*Chart); !present[chart.File] {
			stale = append(stale, chart)
		}
	}
	for _, chart := range stale {
		if err := txn.Delete(tableChart, chart); err != nil {
			result = multierror.Append(result, err)
		}
	}
	txn.Commit()

	for _, chart := range append(stale, replaced...) {
		chart.Close()
	}
	return result
}

// Charts lists the catalog sorted by name.
func (c *Catalog) Charts() []*Chart {
	txn := c.memDb.Txn(false)
	defer txn.Abort()
	var charts []*Chart
	it, err := txn.Get(tableChart, "id")
	if err != nil {
		return nil
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		charts = append(charts, raw.(*Chart))
	}
	sort.Slice(charts, func(i, j int) bool { return charts[i].Name < charts[j].Name })
	return charts
}

func (c *Catalog) Get(name string) (*Chart, bool) {
	txn := c.memDb.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableChart, "id", name)
	if err != nil || raw == nil {
		return nil, false
	}
	return raw.(*Chart), true
}

// Watch refreshes the catalog on directory changes until ctxt is done.
func (c *Catalog) Watch(ctxt gogroup.GoGroup) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "watch %v", c.dir)
	}
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		defer watcher.Close()
		for {
			select {
			case <-ctxt.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !strings.EqualFold(filepath.Ext(event.Name), Extension) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				log.Debug("chart change: %v", event)
				if err := c.Refresh(); err != nil {
					log.Warn("refreshing charts: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Error("charts watch: %v", err)
			}
		}
	})
	return nil
}

func (c *Catalog) Close() {
	for _, chart := range c.Charts() {
		chart.Close()
	}
}
