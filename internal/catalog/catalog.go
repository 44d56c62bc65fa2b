package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/models"
)

// Catalog holds one curated offer list backed by a JSON file. Reads return a
// snapshot copy; admin edits rewrite the file atomically and the watcher (or
// the writer itself) reloads the in-memory list.
type Catalog struct {
	path   string
	logger *logging.Logger

	mu     sync.RWMutex
	offers []models.Offer
}

// New creates a catalog over the given JSON file and performs the initial
// load. A missing file is not an error; the catalog starts empty and the
// file is created on the first save.
func New(path string, logger *logging.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.NewLogger()
	}
	c := &Catalog{path: path, logger: logger}
	if err := c.Reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		c.logger.Info("catalog file absent, starting empty", "path", path)
	}
	return c, nil
}

// Offers returns a snapshot of the current offer list, sorted by family name
// then option order.
func (c *Catalog) Offers() []models.Offer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make([]models.Offer, len(c.offers))
	copy(snapshot, c.offers)
	return snapshot
}

// Len returns the number of offers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.offers)
}

// Reload reads the backing file and replaces the in-memory list. The
// unwrapped os error is returned for a missing file so New can treat that as
// an empty start.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}

	var offers []models.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}
	sortOffers(offers)

	c.mu.Lock()
	c.offers = offers
	c.mu.Unlock()

	c.logger.Debug("catalog loaded", "path", c.path, "offers", len(offers))
	return nil
}

// Add validates and appends an offer, then persists the list.
func (c *Catalog) Add(offer models.Offer) error {
	if err := offer.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	offers := append(append([]models.Offer{}, c.offers...), offer)
	sortOffers(offers)
	if err := c.saveLocked(offers); err != nil {
		return err
	}
	c.offers = offers
	return nil
}

// Remove deletes the offer at the given snapshot index and persists the
// list. Out-of-range indexes are a no-op returning false.
func (c *Catalog) Remove(index int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.offers) {
		return false, nil
	}
	offers := append([]models.Offer{}, c.offers...)
	offers = append(offers[:index], offers[index+1:]...)
	if err := c.saveLocked(offers); err != nil {
		return false, err
	}
	c.offers = offers
	return true, nil
}

// saveLocked writes the offer list to the backing file via a rename so a
// concurrent reader never sees a torn file. Caller holds the write lock.
func (c *Catalog) saveLocked(offers []models.Offer) error {
	data, err := json.MarshalIndent(offers, "", "  ")
	if err != nil {
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errors.ErrDirectoryCreate{Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return &errors.ErrCatalogLoad{Path: c.path, Err: err}
	}
	return nil
}

// Watch reloads the catalog whenever the backing file changes on disk, until
// the context is cancelled. External edits (a deploy dropping a new file)
// become visible without a restart.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: atomic saves replace the file and
	// a file-level watch would die with the old inode.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != c.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					if err := c.Reload(); err != nil && !os.IsNotExist(err) {
						c.logger.Warn("catalog reload failed", "path", c.path, "error", err.Error())
					}
				}
			case <-watcher.Errors:
				// Watcher errors are non-fatal; the next explicit reload
				// still works.
			}
		}
	}()

	return nil
}

func sortOffers(offers []models.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if offers[i].FamilyName != offers[j].FamilyName {
			return offers[i].FamilyName < offers[j].FamilyName
		}
		return offers[i].OptionOrder < offers[j].OptionOrder
	})
}
