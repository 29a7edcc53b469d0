package repository

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/parquet-go/parquet-go"

	"RiskLab/internal/domain/models"
	applogger "RiskLab/pkg/logger"
	"RiskLab/pkg/util"
)

// RawCell is one provider cell in long form.
type RawCell struct {
	Row    int64  `parquet:"row"`
	Column string `parquet:"column"`
	Value  string `parquet:"value"`
}

// MacroRow is one standardized macro observation.
type MacroRow struct {
	Date  string   `parquet:"date"`
	Value *float64 `parquet:"value,optional"`
}

// MarketRow is one standardized market bar.
type MarketRow struct {
	Date     string   `parquet:"date"`
	Open     *float64 `parquet:"open,optional"`
	High     *float64 `parquet:"high,optional"`
	Low      *float64 `parquet:"low,optional"`
	Close    *float64 `parquet:"close,optional"`
	AdjClose *float64 `parquet:"adj_close,optional"`
	Volume   *int64   `parquet:"volume,optional"`
}

// ParquetArtifactStore writes snappy-compressed parquet files under a billy filesystem.
// Paths depend on provider, series and the requested date range only, so a rerun
// of the same window replaces the previous file.
type ParquetArtifactStore struct {
	fs billy.Filesystem
	l  *applogger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewParquetArtifactStore roots the store at fs.
func NewParquetArtifactStore(fs billy.Filesystem, l *applogger.Logger) *ParquetArtifactStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ParquetArtifactStore{fs: fs, l: l, locks: make(map[string]*sync.Mutex)}
}

// ArtifactPath returns the relative path of an artifact.
func ArtifactPath(kind models.ArtifactKind, p models.Provider, seriesID string, start, end time.Time) string {
	file := "range=" + util.RangeSignature(start, end) + ".parquet"
	series := "series=" + util.SanitizeKey(seriesID)
	if kind == models.ArtifactRaw {
		return path.Join("raw", "source="+util.SanitizeKey(string(p)), series, file)
	}
	return path.Join("standardized", series, file)
}

func (s *ParquetArtifactStore) WriteRaw(ctx context.Context, t *models.RawTable, req models.SeriesRequest, runTS time.Time) (string, error) {
	p := ArtifactPath(models.ArtifactRaw, req.Provider, req.SeriesID, req.Start, req.End)
	cells := make([]RawCell, 0, t.Len()*len(t.Columns))
	for i, row := range t.Rows {
		for j, col := range t.Columns {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			cells = append(cells, RawCell{Row: int64(i), Column: col, Value: v})
		}
	}
	if err := s.write(ctx, p, func(buf *bytes.Buffer) error { return encode(buf, cells) }); err != nil {
		return "", err
	}
	s.l.Debug("raw artifact written",
		applogger.String("series_id", req.SeriesID),
		applogger.String("path", p),
		applogger.Int("cells", len(cells)),
		applogger.Time("run_ts", runTS),
	)
	return p, nil
}

func (s *ParquetArtifactStore) WriteStandardized(ctx context.Context, t *models.StandardTable, req models.SeriesRequest, runTS time.Time) (string, error) {
	p := ArtifactPath(models.ArtifactStandardized, req.Provider, req.SeriesID, req.Start, req.End)
	var enc func(*bytes.Buffer) error
	switch t.Type {
	case models.SeriesTypeMacro:
		rows := macroRows(t)
		enc = func(buf *bytes.Buffer) error { return encode(buf, rows) }
	case models.SeriesTypeMarket:
		rows, err := marketRows(t)
		if err != nil {
			return "", &models.StorageWriteError{Path: p, Err: err}
		}
		enc = func(buf *bytes.Buffer) error { return encode(buf, rows) }
	default:
		return "", &models.StorageWriteError{Path: p, Err: fmt.Errorf("unsupported series type %q", t.Type)}
	}
	if err := s.write(ctx, p, enc); err != nil {
		return "", err
	}
	s.l.Debug("standardized artifact written",
		applogger.String("series_id", req.SeriesID),
		applogger.String("path", p),
		applogger.Int("rows", t.Len()),
		applogger.Time("run_ts", runTS),
	)
	return p, nil
}

// write encodes into memory, writes a temp file next to the target and renames it over the target.
func (s *ParquetArtifactStore) write(ctx context.Context, p string, enc func(*bytes.Buffer) error) error {
	if err := ctx.Err(); err != nil {
		return &models.StorageWriteError{Path: p, Err: err}
	}
	lock := s.lockFor(p)
	lock.Lock()
	defer lock.Unlock()

	var buf bytes.Buffer
	if err := enc(&buf); err != nil {
		return &models.StorageWriteError{Path: p, Err: fmt.Errorf("encode: %w", err)}
	}

	dir := path.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return &models.StorageWriteError{Path: p, Err: err}
	}
	tmp, err := s.fs.TempFile(dir, ".tmp-")
	if err != nil {
		return &models.StorageWriteError{Path: p, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return &models.StorageWriteError{Path: p, Err: err}
	}
	if err := syncFile(tmp); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return &models.StorageWriteError{Path: p, Err: fmt.Errorf("sync: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return &models.StorageWriteError{Path: p, Err: err}
	}
	if err := s.fs.Rename(tmpName, p); err != nil {
		_ = s.fs.Remove(tmpName)
		return &models.StorageWriteError{Path: p, Err: err}
	}
	return nil
}

// syncFile flushes f to stable storage when the filesystem supports it.
func syncFile(f billy.File) error {
	if sf, ok := f.(interface{ Sync() error }); ok {
		return sf.Sync()
	}
	return nil
}

func (s *ParquetArtifactStore) lockFor(p string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[p]
	if !ok {
		m = &sync.Mutex{}
		s.locks[p] = m
	}
	return m
}

// ReadRaw decodes a raw artifact back into a RawTable.
func (s *ParquetArtifactStore) ReadRaw(p string) (*models.RawTable, error) {
	cells, err := decode[RawCell](s.fs, p)
	if err != nil {
		return nil, err
	}
	t := &models.RawTable{}
	colIdx := make(map[string]int)
	for _, c := range cells {
		j, ok := colIdx[c.Column]
		if !ok {
			j = len(t.Columns)
			colIdx[c.Column] = j
			t.Columns = append(t.Columns, c.Column)
		}
		for int64(len(t.Rows)) <= c.Row {
			t.Rows = append(t.Rows, nil)
		}
		row := t.Rows[c.Row]
		for len(row) <= j {
			row = append(row, "")
		}
		row[j] = c.Value
		t.Rows[c.Row] = row
	}
	return t, nil
}

// ReadMacro decodes a standardized macro artifact.
func (s *ParquetArtifactStore) ReadMacro(p string) ([]MacroRow, error) {
	return decode[MacroRow](s.fs, p)
}

// ReadMarket decodes a standardized market artifact.
func (s *ParquetArtifactStore) ReadMarket(p string) ([]MarketRow, error) {
	return decode[MarketRow](s.fs, p)
}

func encode[T any](buf *bytes.Buffer, rows []T) error {
	w := parquet.NewGenericWriter[T](buf, parquet.Compression(&parquet.Snappy))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

func decode[T any](fs billy.Filesystem, p string) ([]T, error) {
	b, err := billyutil.ReadFile(fs, p)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", p, err)
	}
	rows, err := parquet.Read[T](bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", p, err)
	}
	return rows, nil
}

func macroRows(t *models.StandardTable) []MacroRow {
	col, _ := t.Column(models.ColValue)
	rows := make([]MacroRow, t.Len())
	for i, d := range t.Dates {
		rows[i] = MacroRow{Date: util.FormatDate(d), Value: floatPtr(col, i)}
	}
	return rows
}

func marketRows(t *models.StandardTable) ([]MarketRow, error) {
	open, _ := t.Column(models.ColOpen)
	high, _ := t.Column(models.ColHigh)
	low, _ := t.Column(models.ColLow)
	cl, _ := t.Column(models.ColClose)
	adj, _ := t.Column(models.ColAdjClose)
	vol, _ := t.Column(models.ColVolume)

	rows := make([]MarketRow, t.Len())
	for i, d := range t.Dates {
		r := MarketRow{
			Date:     util.FormatDate(d),
			Open:     floatPtr(open, i),
			High:     floatPtr(high, i),
			Low:      floatPtr(low, i),
			Close:    floatPtr(cl, i),
			AdjClose: floatPtr(adj, i),
		}
		if v := floatPtr(vol, i); v != nil {
			if math.IsInf(*v, 0) || *v != math.Trunc(*v) {
				return nil, fmt.Errorf("volume at %s is not an integer", r.Date)
			}
			n := int64(*v)
			r.Volume = &n
		}
		rows[i] = r
	}
	return rows, nil
}

func floatPtr(c *models.Column, i int) *float64 {
	if c == nil || i >= len(c.Values) || !c.Values[i].Valid {
		return nil
	}
	v := c.Values[i].Float
	return &v
}
