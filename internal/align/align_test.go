package align

import (
	"testing"

	"FinForge/internal/frame"
)

func seriesFrame(t *testing.T, ts []int64, closes []float64) *frame.Frame {
	t.Helper()
	f := frame.New(ts)
	if err := f.AddColumn("close", closes, nil); err != nil {
		t.Fatalf("build series: %v", err)
	}
	return f
}

func minuteGrid(n int) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i) * 60_000
	}
	return ts
}

func TestFactoryRejectsUnknownMethod(t *testing.T) {
	if _, err := New("fuzzy", "1m", Backward, nil); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestFactoryRejectsBadTolerance(t *testing.T) {
	if _, err := NewHybridAsof("soon", Backward, nil); err == nil {
		t.Fatalf("expected error for bad tolerance")
	}
}

func TestFactoryRejectsBadDirection(t *testing.T) {
	if _, err := NewHybridAsof("1m", Direction("sideways"), nil); err == nil {
		t.Fatalf("expected error for bad direction")
	}
}

func TestParseTolerance(t *testing.T) {
	cases := map[string]int64{
		"500ms": 500,
		"30s":   30_000,
		"1m":    60_000,
		"2h":    7_200_000,
		"1d":    86_400_000,
	}
	for in, want := range cases {
		got, err := parseTolerance(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %d want %d", in, got, want)
		}
	}
}

func TestAsofEmptyInput(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	if _, err := a.Align(map[string]*frame.Frame{}, Options{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestAsofMissingAnchor(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	series := map[string]*frame.Frame{
		"BTC": seriesFrame(t, minuteGrid(3), []float64{1, 2, 3}),
	}
	if _, err := a.Align(series, Options{Anchor: "ETH"}); err == nil {
		t.Fatalf("expected error for absent anchor")
	}
}

func TestAsofLengthAndSuffix(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, minuteGrid(5), []float64{100, 101, 102, 103, 104}),
		"DOGE": seriesFrame(t, minuteGrid(5), []float64{0.50, 0.51, 0.52, 0.53, 0.54}),
	}
	out, err := a.Align(series, Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if out.NumRows() != 5 {
		t.Fatalf("expected anchor row count 5, got %d", out.NumRows())
	}
	for _, name := range []string{"close_BTC", "close_DOGE"} {
		if !out.HasColumn(name) {
			t.Fatalf("missing suffixed column %s", name)
		}
	}
	if v, ok := out.Value("close_BTC", 0); !ok || v != 100.0 {
		t.Fatalf("close_BTC row 0: got %v %v", v, ok)
	}
	if v, ok := out.Value("close_DOGE", 0); !ok || v != 0.50 {
		t.Fatalf("close_DOGE row 0: got %v %v", v, ok)
	}
	if anchor, _ := out.Attr("anchor_symbol"); anchor != "BTC" {
		t.Fatalf("anchor attr: got %q", anchor)
	}
}

func TestAsofToleranceNullability(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	// Follower's only sample sits 5 minutes before the second anchor bar.
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, []int64{600_000, 960_000}, []float64{100, 101}),
		"DOGE": seriesFrame(t, []int64{600_000}, []float64{0.50}),
	}
	out, err := a.Align(series, Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if _, ok := out.Value("close_DOGE", 0); !ok {
		t.Fatalf("in-tolerance match should be non-null")
	}
	if _, ok := out.Value("close_DOGE", 1); ok {
		t.Fatalf("out-of-tolerance match should be null")
	}
}

func TestLooseWidensTolerance(t *testing.T) {
	// Follower's only sample sits 4 minutes back: outside the default 1m
	// tolerance, inside the loose 5m default.
	series := func(t *testing.T) map[string]*frame.Frame {
		return map[string]*frame.Frame{
			"BTC":  seriesFrame(t, []int64{600_000, 840_000}, []float64{100, 101}),
			"DOGE": seriesFrame(t, []int64{600_000}, []float64{0.50}),
		}
	}
	strict, err := Default(nil)
	if err != nil {
		t.Fatalf("default aligner: %v", err)
	}
	out, err := strict.Align(series(t), Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if _, ok := out.Value("close_DOGE", 1); ok {
		t.Fatalf("default tolerance should leave the far match null")
	}
	loose, err := Loose("", nil)
	if err != nil {
		t.Fatalf("loose aligner: %v", err)
	}
	out, err = loose.Align(series(t), Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if v, ok := out.Value("close_DOGE", 1); !ok || v != 0.50 {
		t.Fatalf("loose tolerance should match the far sample, got %v %v", v, ok)
	}
}

func TestAsofStrictDropsNullRows(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, []int64{600_000, 960_000}, []float64{100, 101}),
		"DOGE": seriesFrame(t, []int64{600_000}, []float64{0.50}),
	}
	out, err := a.Align(series, Options{Anchor: "BTC", Strict: true})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if out.NumRows() != 1 {
		t.Fatalf("strict mode should drop incomplete rows, got %d", out.NumRows())
	}
}

// The source configs disagree on the default direction; backward is treated
// as canonical here, so a zero-value direction must behave like Backward.
func TestAsofDefaultDirectionIsBackward(t *testing.T) {
	a, err := NewHybridAsof("1m", "", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, []int64{120_000}, []float64{100}),
		"DOGE": seriesFrame(t, []int64{90_000, 150_000}, []float64{1, 2}),
	}
	out, err := a.Align(series, Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if v, ok := out.Value("close_DOGE", 0); !ok || v != 1 {
		t.Fatalf("backward should match the earlier sample, got %v %v", v, ok)
	}
}

func TestAsofForwardDirection(t *testing.T) {
	a, _ := NewHybridAsof("1m", Forward, nil)
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, []int64{120_000}, []float64{100}),
		"DOGE": seriesFrame(t, []int64{90_000, 150_000}, []float64{1, 2}),
	}
	out, err := a.Align(series, Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if v, ok := out.Value("close_DOGE", 0); !ok || v != 2 {
		t.Fatalf("forward should match the later sample, got %v %v", v, ok)
	}
}

func TestAsofSkipsBrokenFollower(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, minuteGrid(3), []float64{1, 2, 3}),
		"DOGE": frame.New(nil), // empty follower
	}
	out, err := a.Align(series, Options{Anchor: "BTC"})
	if err != nil {
		t.Fatalf("broken follower should be skipped, not fatal: %v", err)
	}
	if out.HasColumn("close_DOGE") {
		t.Fatalf("skipped follower must not contribute columns")
	}
	if got, _ := out.Attr("aligned_symbols"); got != "BTC" {
		t.Fatalf("aligned symbols attr: got %q", got)
	}
}

func TestAsofBrokenAnchorIsFatal(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	series := map[string]*frame.Frame{
		"BTC":  frame.New(nil),
		"DOGE": seriesFrame(t, minuteGrid(3), []float64{1, 2, 3}),
	}
	if _, err := a.Align(series, Options{Anchor: "BTC"}); err == nil {
		t.Fatalf("broken anchor must abort")
	}
}

func TestAsofDedupKeepsLastWrite(t *testing.T) {
	a, _ := NewHybridAsof("1m", Backward, nil)
	f := frame.New([]int64{0, 0, 60_000})
	_ = f.AddColumn("close", []float64{99, 100, 101}, nil)
	series := map[string]*frame.Frame{"BTC": f}
	out, err := a.Align(series, Options{})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("duplicate timestamps should collapse, got %d rows", out.NumRows())
	}
	if v, _ := out.Value("close_BTC", 0); v != 100 {
		t.Fatalf("expected last write to win, got %v", v)
	}
}

func TestExactInnerJoin(t *testing.T) {
	a := NewExact(nil)
	series := map[string]*frame.Frame{
		"BTC":  seriesFrame(t, []int64{0, 60_000, 120_000}, []float64{1, 2, 3}),
		"DOGE": seriesFrame(t, []int64{60_000, 120_000, 180_000}, []float64{4, 5, 6}),
	}
	out, err := a.Align(series, Options{})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("expected 2 common rows, got %d", out.NumRows())
	}
	if v, _ := out.Value("close_BTC", 0); v != 2 {
		t.Fatalf("close_BTC row 0: got %v", v)
	}
	if v, _ := out.Value("close_DOGE", 1); v != 6 {
		t.Fatalf("close_DOGE row 1: got %v", v)
	}
}

func TestExactEmptyInput(t *testing.T) {
	a := NewExact(nil)
	if _, err := a.Align(nil, Options{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
