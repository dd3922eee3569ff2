package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/patientsim/internal/cache"
)

// ErrUnknownPatient is returned when no case matches an id or category
var ErrUnknownPatient = errors.New("unknown patient")

// Summary is the catalog listing entry for a case
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	ChiefComplaint string `json:"chief_complaint"`
}

// Catalog loads patient cases from a directory of YAML (or JSON) files,
// one case per file, named by case id.
type Catalog struct {
	dir   string
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCatalog creates a catalog over dir. Parsed records are kept in c for ttl.
func NewCatalog(dir string, c cache.Cache, ttl time.Duration, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{dir: dir, cache: c, ttl: ttl, log: log}
}

var extensions = []string{".yaml", ".yml", ".json"}

// Get returns the case with the given id
func (c *Catalog) Get(id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("get %q: %w", id, ErrUnknownPatient)
	}

	key := cache.CacheKey("patient:" + id)
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			var r Record
			if err := json.Unmarshal(data, &r); err == nil {
				return &r, nil
			}
			_ = c.cache.Delete(key)
		}
	}

	for _, ext := range extensions {
		path := filepath.Join(c.dir, id+ext)
		r, err := readRecord(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if r.ID == "" {
			r.ID = id
		}
		c.store(key, r)
		return r, nil
	}
	return nil, fmt.Errorf("get %q: %w", id, ErrUnknownPatient)
}

// List returns every case in the catalog, sorted by id
func (c *Catalog) List() ([]Summary, error) {
	ids, err := c.ids()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		r, err := c.Get(id)
		if err != nil {
			c.log.Warn("skipping unreadable case", zap.String("id", id), zap.Error(err))
			continue
		}
		out = append(out, Summarize(r))
	}
	return out, nil
}

// Pick selects a case. A non-empty selector naming a case id returns that
// case; otherwise it is treated as a category and a random case of that
// category is returned. An empty selector picks from the whole catalog.
func (c *Catalog) Pick(selector string) (*Record, error) {
	selector = strings.TrimSpace(selector)
	if selector != "" {
		if r, err := c.Get(selector); err == nil {
			return r, nil
		}
	}
	all, err := c.List()
	if err != nil {
		return nil, err
	}
	var pool []Summary
	for _, s := range all {
		if selector == "" || strings.EqualFold(s.Category, selector) {
			pool = append(pool, s)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("pick %q: %w", selector, ErrUnknownPatient)
	}
	return c.Get(pool[rand.Intn(len(pool))].ID)
}

// Summarize builds the listing entry for a record
func Summarize(r *Record) Summary {
	return Summary{
		ID:             r.ID,
		Name:           r.Name,
		Category:       r.Category,
		Age:            fmt.Sprintf("%d %s", r.Age.Value, r.Age),
		Gender:         r.Gender,
		ChiefComplaint: r.ChiefComplaint.Name,
	}
}

func (c *Catalog) ids() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !knownExt(ext) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *Catalog) store(key string, r *Record) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.cache.Set(key, data, c.ttl); err != nil {
		c.log.Debug("cache patient record", zap.String("id", r.ID), zap.Error(err))
	}
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Record
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &r, nil
}

func knownExt(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
