package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"FinForge/internal/frame"
)

func featureFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New([]int64{0, 60_000, 120_000})
	for _, name := range []string{"close_BTC", "log_BTC", "z_score_DOGE"} {
		if err := f.AddColumn(name, []float64{1, 2, 3}, nil); err != nil {
			t.Fatalf("build frame: %v", err)
		}
	}
	f.SetAttr("aligned_symbols", "BTC,DOGE")
	f.SetAttr("anchor_symbol", "BTC")
	f.SetAttr("alignment_method", "join_asof(tol=1m, direction=backward)")
	return f
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestFingerprintDeterministic(t *testing.T) {
	r := newTestRegistry(t)
	a := map[string]string{"timestamp": "int64", "log_BTC": "float64", "close_BTC": "float64"}
	b := map[string]string{"close_BTC": "float64", "timestamp": "int64", "log_BTC": "float64"}
	if r.Fingerprint(a) != r.Fingerprint(b) {
		t.Fatalf("fingerprint must be independent of map order")
	}
	if len(r.Fingerprint(a)) != 64 {
		t.Fatalf("expected sha256 hex digest")
	}
}

func TestFingerprintChangesWithParams(t *testing.T) {
	r := newTestRegistry(t)
	a := map[string]string{"beta_window": "1h", "zscore_window": "1d"}
	b := map[string]string{"beta_window": "4h", "zscore_window": "1d"}
	if r.Fingerprint(a) == r.Fingerprint(b) {
		t.Fatalf("different parameter sets must not collide")
	}
}

func TestFeatureHashTracksParameterDrift(t *testing.T) {
	// Same columns, different windows: the hash must still differ, or a
	// parameter change between backtest and production goes unnoticed.
	r := newTestRegistry(t)
	a := featureFrame(t)
	a.SetAttr("beta_window", "5m")
	a.SetAttr("zscore_window", "10m")
	b := featureFrame(t)
	b.SetAttr("beta_window", "15m")
	b.SetAttr("zscore_window", "20m")
	entryA := r.EntryFor("features_btc", a)
	entryB := r.EntryFor("features_btc", b)
	if entryA.FeatureHash == entryB.FeatureHash {
		t.Fatalf("changed windows must change the feature hash")
	}
}

func TestEnforceFloat64(t *testing.T) {
	ok := map[string]string{"timestamp": "int64", "z_score_BTC": "Float64", "ret_BTC": "f64", "extra": "string"}
	if err := EnforceFloat64(ok); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}
	bad := map[string]string{"timestamp": "int64", "z_score_BTC": "Float32"}
	err := EnforceFloat64(bad)
	if err == nil || !strings.Contains(err.Error(), "z_score_BTC") {
		t.Fatalf("Float32 sensitive column must be rejected, got %v", err)
	}
}

func TestCommitLoadRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	entry := r.EntryFor("features_btc", featureFrame(t))
	if err := r.Commit(entry); err != nil {
		t.Fatalf("commit: %v", err)
	}
	loaded, err := r.Load("features_btc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Rows != 3 || loaded.Anchor != "BTC" {
		t.Fatalf("loaded entry: %+v", loaded)
	}
	if loaded.Format != DefaultFormat || loaded.Compression != DefaultCompression {
		t.Fatalf("format tags missing: %+v", loaded)
	}
	if loaded.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version missing: %+v", loaded)
	}
	if loaded.FeatureParams["alignment_method"] == "" {
		t.Fatalf("feature params lineage missing: %+v", loaded.FeatureParams)
	}
	if loaded.FeatureHash != entry.FeatureHash {
		t.Fatalf("hash drift after round trip")
	}
	if loaded.LastUpdate.IsZero() {
		t.Fatalf("last_update must be stamped")
	}
	if loaded.ColumnCount != 4 {
		t.Fatalf("column_count: got %d want 4", loaded.ColumnCount)
	}
	if !sort.StringsAreSorted(loaded.Columns) {
		t.Fatalf("columns must be persisted sorted: %v", loaded.Columns)
	}
	if len(loaded.Symbols) != 2 {
		t.Fatalf("symbols lineage missing: %v", loaded.Symbols)
	}
}

func TestCommitRejectsBadSchema(t *testing.T) {
	r := newTestRegistry(t)
	entry := Entry{
		Dataset: "broken",
		Schema:  map[string]string{"beta_DOGE_BTC": "float32"},
	}
	if err := r.Commit(entry); err == nil {
		t.Fatalf("commit must enforce float64 schema")
	}
	if _, err := r.Load("broken"); err == nil {
		t.Fatalf("rejected entry must not be written")
	}
}

func TestCommitLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := r.Commit(r.EntryFor("features_btc", featureFrame(t))); err != nil {
		t.Fatalf("commit: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestVerifyConsistency(t *testing.T) {
	r := newTestRegistry(t)
	f := featureFrame(t)
	f.SetAttr("beta_window", "1h")
	if err := r.Commit(r.EntryFor("features_btc", f)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := r.VerifyConsistency("features_btc", f, nil); err != nil {
		t.Fatalf("unchanged frame must verify: %v", err)
	}
	f.SetAttr("beta_window", "4h")
	if err := r.VerifyConsistency("features_btc", f, nil); err == nil {
		t.Fatalf("parameter drift must fail verification")
	}
}

func TestVerifyConsistencyAgainstExplicitParams(t *testing.T) {
	r := newTestRegistry(t)
	f := featureFrame(t)
	f.SetAttr("beta_window", "1h")
	if err := r.Commit(r.EntryFor("features_btc", f)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	expected := f.Attrs()
	if err := r.VerifyConsistency("features_btc", f, expected); err != nil {
		t.Fatalf("matching explicit params must verify: %v", err)
	}
	expected["beta_window"] = "4h"
	if err := r.VerifyConsistency("features_btc", f, expected); err == nil {
		t.Fatalf("mismatched explicit params must fail verification")
	}
}

func TestList(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha"} {
		if err := r.Commit(r.EntryFor(name, featureFrame(t))); err != nil {
			t.Fatalf("commit %s: %v", name, err)
		}
	}
	names, err := r.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("list: %v", names)
	}
}
