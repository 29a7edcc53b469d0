package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"

	"RiskLab/internal/domain/models"
	applogger "RiskLab/pkg/logger"
)

// JSONCatalog keeps every RunRecord in one JSON array document.
// Append rewrites the document through a temp file and a rename, so readers
// always see either the previous or the new document.
type JSONCatalog struct {
	fs   billy.Filesystem
	path string
	l    *applogger.Logger
	mu   sync.Mutex
}

// NewJSONCatalog opens the catalog at p on fs. The file is created on first Append.
func NewJSONCatalog(fs billy.Filesystem, p string, l *applogger.Logger) *JSONCatalog {
	if l == nil {
		l = applogger.Nop()
	}
	return &JSONCatalog{fs: fs, path: p, l: l}
}

// Path returns the document location.
func (c *JSONCatalog) Path() string { return c.path }

func (c *JSONCatalog) Append(ctx context.Context, rec models.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return &models.CatalogWriteError{Path: c.path, Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return &models.CatalogWriteError{Path: c.path, Err: err}
	}
	records = append(records, rec)

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &models.CatalogWriteError{Path: c.path, Err: fmt.Errorf("encode: %w", err)}
	}
	b = append(b, '\n')
	if err := c.writeAtomic(b); err != nil {
		return &models.CatalogWriteError{Path: c.path, Err: err}
	}
	c.l.Debug("catalog record appended",
		applogger.String("run_id", rec.RunID),
		applogger.String("series_id", rec.SeriesID),
		applogger.Int("records", len(records)),
	)
	return nil
}

// List returns matching records in append order. A positive Limit keeps the
// most recent matches.
func (c *JSONCatalog) List(ctx context.Context, f models.RunFilter) ([]models.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	records, err := c.load()
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", c.path, err)
	}

	out := make([]models.RunRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

func (c *JSONCatalog) Get(ctx context.Context, runID string) (models.RunRecord, bool, error) {
	records, err := c.List(ctx, models.RunFilter{})
	if err != nil {
		return models.RunRecord{}, false, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].RunID == runID {
			return records[i], true, nil
		}
	}
	return models.RunRecord{}, false, nil
}

// load reads the document. A missing or empty file is an empty catalog; a
// single object is read as a one-element list.
func (c *JSONCatalog) load() ([]models.RunRecord, error) {
	b, err := billyutil.ReadFile(c.fs, c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	if b[0] == '{' {
		var rec models.RunRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("corrupt catalog document: %w", err)
		}
		return []models.RunRecord{rec}, nil
	}
	var records []models.RunRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("corrupt catalog document: %w", err)
	}
	return records, nil
}

func (c *JSONCatalog) writeAtomic(b []byte) error {
	dir := path.Dir(c.path)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := c.fs.TempFile(dir, ".catalog-")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(name)
		return err
	}
	if err := syncFile(tmp); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = c.fs.Remove(name)
		return err
	}
	if err := c.fs.Rename(name, c.path); err != nil {
		_ = c.fs.Remove(name)
		return err
	}
	return nil
}
