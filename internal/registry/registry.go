package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"FinForge/internal/frame"
	applogger "FinForge/pkg/logger"
)

// Defaults stamped onto every committed entry.
const (
	DefaultFormat      = "parquet"
	DefaultCompression = "zstd-5"
)

// hashCacheLimit bounds the fingerprint memoization cache.
const hashCacheLimit = 100

// sensitivePrefixes mark derived feature columns whose storage type must be
// full-precision float64. Half-precision storage silently corrupts z-scores
// and betas, so the registry refuses it outright.
var sensitivePrefixes = []string{"log_", "ret_", "vol_", "corr_", "beta_", "spread_", "z_score_"}

// float64Indicators are the storage type spellings accepted for sensitive
// columns, compared case-insensitively.
var float64Indicators = map[string]bool{"float64": true, "f64": true}

// SchemaVersion tags the metadata file layout.
const SchemaVersion = "1.0"

// Entry is one dataset's metadata record.
type Entry struct {
	Dataset         string            `json:"dataset"`
	LastUpdate      time.Time         `json:"last_update"`
	Rows            int               `json:"row_count"`
	ColumnCount     int               `json:"column_count"`
	Columns         []string          `json:"columns"`
	Schema          map[string]string `json:"schema"`
	FeatureHash     string            `json:"feature_hash"`
	SchemaVersion   string            `json:"schema_version"`
	FeatureParams   map[string]string `json:"feature_params,omitempty"`
	Format          string            `json:"format"`
	Compression     string            `json:"compression"`
	Symbols         []string          `json:"symbols,omitempty"`
	Anchor          string            `json:"anchor,omitempty"`
	AlignmentMethod string            `json:"alignment_method,omitempty"`
}

// Registry stores one JSON metadata file per dataset under a root
// directory. Commits are atomic: written to a temp file in the same
// directory, then renamed into place.
type Registry struct {
	dir string
	log *applogger.Logger

	mu         sync.Mutex
	hashCache  map[string]string
	cacheOrder []string
}

// New opens a registry rooted at dir, creating it if needed.
func New(dir string, log *applogger.Logger) (*Registry, error) {
	if dir == "" {
		return nil, fmt.Errorf("registry: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create %s: %w", dir, err)
	}
	return &Registry{
		dir:       dir,
		log:       log,
		hashCache: make(map[string]string, hashCacheLimit),
	}, nil
}

// SchemaOf derives the storage schema of a frame: the timestamp axis is
// int64 milliseconds, every data column is float64.
func SchemaOf(f *frame.Frame) map[string]string {
	schema := make(map[string]string, f.NumColumns()+1)
	schema[frame.TimestampColumn] = "int64"
	for _, name := range f.Columns() {
		schema[name] = "float64"
	}
	return schema
}

// EnforceFloat64 rejects schemas that store any sensitive feature column in
// a non-float64 type.
func EnforceFloat64(schema map[string]string) error {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !isSensitive(name) {
			continue
		}
		if !float64Indicators[strings.ToLower(schema[name])] {
			return fmt.Errorf("registry: column %s requires float64 storage, schema declares %q", name, schema[name])
		}
	}
	return nil
}

func isSensitive(name string) bool {
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Fingerprint returns the SHA-256 hex digest of the canonical encoding of a
// feature-parameter map (windows, anchor, alignment method and the like).
// A parameter changed between two runs changes the hash even when the output
// columns stay identical. Identical maps always hash identically regardless
// of iteration order; results are memoized.
func (r *Registry) Fingerprint(params map[string]string) string {
	canonical := canonicalParams(params)

	r.mu.Lock()
	defer r.mu.Unlock()
	if hash, ok := r.hashCache[canonical]; ok {
		return hash
	}
	sum := sha256.Sum256([]byte(canonical))
	hash := hex.EncodeToString(sum[:])
	if len(r.cacheOrder) >= hashCacheLimit {
		oldest := r.cacheOrder[0]
		r.cacheOrder = r.cacheOrder[1:]
		delete(r.hashCache, oldest)
	}
	r.hashCache[canonical] = hash
	r.cacheOrder = append(r.cacheOrder, canonical)
	return hash
}

// canonicalParams renders a parameter map as JSON with keys sorted.
func canonicalParams(params map[string]string) string {
	type param struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	list := make([]param, 0, len(params))
	for k, v := range params {
		list = append(list, param{Key: k, Value: v})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	raw, _ := json.Marshal(list)
	return string(raw)
}

// EntryFor builds a metadata entry from a finished frame, carrying the
// alignment and tier lineage recorded on it. The feature hash covers the
// parameter map, not the column schema, so a changed window or tolerance is
// caught even when the output columns stay the same.
func (r *Registry) EntryFor(dataset string, f *frame.Frame) Entry {
	columns := append([]string{frame.TimestampColumn}, f.Columns()...)
	sort.Strings(columns)
	params := f.Attrs()
	entry := Entry{
		Dataset:       dataset,
		Rows:          f.NumRows(),
		ColumnCount:   len(columns),
		Columns:       columns,
		Schema:        SchemaOf(f),
		FeatureHash:   r.Fingerprint(params),
		SchemaVersion: SchemaVersion,
		Format:        DefaultFormat,
		Compression:   DefaultCompression,
		FeatureParams: params,
	}
	if v, ok := f.Attr("aligned_symbols"); ok && v != "" {
		entry.Symbols = strings.Split(v, ",")
	}
	if v, ok := f.Attr("anchor_symbol"); ok {
		entry.Anchor = v
	}
	if v, ok := f.Attr("alignment_method"); ok {
		entry.AlignmentMethod = v
	}
	return entry
}

// Commit validates and persists an entry atomically.
func (r *Registry) Commit(entry Entry) error {
	if entry.Dataset == "" {
		return fmt.Errorf("registry: dataset name is required")
	}
	if err := EnforceFloat64(entry.Schema); err != nil {
		return err
	}
	if entry.SchemaVersion == "" {
		entry.SchemaVersion = SchemaVersion
	}
	if entry.Format == "" {
		entry.Format = DefaultFormat
	}
	if entry.Compression == "" {
		entry.Compression = DefaultCompression
	}
	if entry.ColumnCount == 0 {
		entry.ColumnCount = len(entry.Columns)
	}
	if entry.FeatureHash == "" {
		entry.FeatureHash = r.Fingerprint(entry.FeatureParams)
	}
	if entry.LastUpdate.IsZero() {
		entry.LastUpdate = time.Now().UTC()
	}

	raw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode %s: %w", entry.Dataset, err)
	}

	final := r.entryPath(entry.Dataset)
	tmp, err := os.CreateTemp(r.dir, entry.Dataset+".*.tmp")
	if err != nil {
		return fmt.Errorf("registry: temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: write %s: %w", entry.Dataset, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: close %s: %w", entry.Dataset, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: commit %s: %w", entry.Dataset, err)
	}

	if r.log != nil {
		r.log.Info("registry entry committed",
			applogger.String("dataset", entry.Dataset),
			applogger.Int("rows", entry.Rows),
			applogger.String("feature_hash", entry.FeatureHash[:12]),
		)
	}
	return nil
}

// Load reads a dataset's metadata entry.
func (r *Registry) Load(dataset string) (Entry, error) {
	raw, err := os.ReadFile(r.entryPath(dataset))
	if err != nil {
		return Entry{}, fmt.Errorf("registry: load %s: %w", dataset, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("registry: decode %s: %w", dataset, err)
	}
	return entry, nil
}

// List returns every dataset with a committed entry, sorted by name.
func (r *Registry) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// VerifyConsistency checks a live frame against the committed entry: the
// frame's feature-parameter hash and row count must both match. A non-nil
// expected map pins the parameters explicitly (e.g. the backtest config)
// instead of trusting the on-disk record.
func (r *Registry) VerifyConsistency(dataset string, f *frame.Frame, expected map[string]string) error {
	entry, err := r.Load(dataset)
	if err != nil {
		return err
	}
	want := entry.FeatureHash
	if expected != nil {
		want = r.Fingerprint(expected)
	}
	hash := r.Fingerprint(f.Attrs())
	if hash != want {
		return fmt.Errorf("registry: dataset %s feature param drift: expected %s, live %s", dataset, want[:12], hash[:12])
	}
	if f.NumRows() != entry.Rows {
		return fmt.Errorf("registry: dataset %s row count drift: committed %d, live %d", dataset, entry.Rows, f.NumRows())
	}
	return nil
}

func (r *Registry) entryPath(dataset string) string {
	return filepath.Join(r.dir, dataset+".json")
}
