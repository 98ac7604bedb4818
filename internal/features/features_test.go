package features

import (
	"math"
	"testing"

	"FinForge/internal/frame"
)

func alignedFrame(t *testing.T, closes map[string][]float64) *frame.Frame {
	t.Helper()
	n := 0
	for _, vals := range closes {
		n = len(vals)
	}
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i) * 60_000
	}
	f := frame.New(ts)
	for symbol, vals := range closes {
		if err := f.AddColumn("close_"+symbol, vals, nil); err != nil {
			t.Fatalf("build aligned frame: %v", err)
		}
	}
	f.SetAttr("anchor_symbol", "BTC")
	return f
}

func TestParseWindowRows(t *testing.T) {
	cases := map[string]int{
		"30m":     30,
		"1h":      60,
		"4h":      240,
		"1d":      1440,
		"1w":      10080,
		"15":      15,
		"bogus":   defaultWindowRows,
		"":        defaultWindowRows,
		"-5m":     defaultWindowRows,
		"minutes": defaultWindowRows,
	}
	for in, want := range cases {
		if got := parseWindowRows(in, nil); got != want {
			t.Fatalf("parseWindowRows(%q): got %d want %d", in, got, want)
		}
	}
}

func TestReturnsLogRoundTrip(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{"BTC": {100, 110, 121}})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got, ok := f.Value("log_BTC", 1); !ok || math.Abs(got-math.Log(110)) > 1e-9 {
		t.Fatalf("log price: got %v want %v", got, math.Log(110))
	}
	want := math.Log(110.0 / 100.0)
	if got, ok := f.Value("ret_BTC", 1); !ok || math.Abs(got-want) > 1e-6 {
		t.Fatalf("log return: got %v want %v", got, want)
	}
	if v, _ := f.Value("ret_BTC", 0); v != 0.0 {
		t.Fatalf("first row return must be filled with 0.0, got %v", v)
	}
}

func TestReturnsClampsNonPositivePrices(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{"BTC": {100, 0, 50}})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, name := range []string{"log_BTC", "ret_BTC"} {
		col, _ := f.Column(name)
		for i, v := range col.Vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s row %d: zero price must not produce NaN/Inf, got %v", name, i, v)
			}
		}
	}
}

func TestReturnsRequiresAlignedCloses(t *testing.T) {
	f := frame.New([]int64{0, 60_000})
	_ = f.AddColumn("open", []float64{1, 2}, nil)
	if _, err := NewReturns(nil).Apply(f); err == nil {
		t.Fatalf("expected error without close columns")
	}
}

func TestMicrostructureRequiresReturnsTier(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{"BTC": {100, 110}})
	if _, err := NewMicrostructure([]string{"1h"}, nil).Apply(f); err == nil {
		t.Fatalf("expected error without return columns")
	}
}

func TestMicrostructureVolatilityAndCorrelation(t *testing.T) {
	n := 16
	btc := make([]float64, n)
	doge := make([]float64, n)
	price, dPrice := 100.0, 1.0
	for i := 0; i < n; i++ {
		step := 1.0 + 0.01*float64(i%3)
		price *= step
		dPrice *= step // identical log returns
		btc[i] = price
		doge[i] = dPrice
	}
	f := alignedFrame(t, map[string][]float64{"BTC": btc, "DOGE": doge})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewMicrostructure([]string{"5m"}, nil).Apply(f); err != nil {
		t.Fatalf("micro: %v", err)
	}

	for _, name := range []string{"vol_BTC_5m", "vol_DOGE_5m", "corr_DOGE_BTC_5m"} {
		if !f.HasColumn(name) {
			t.Fatalf("missing feature column %s", name)
		}
	}
	corr, _ := f.Column("corr_DOGE_BTC_5m")
	for i, v := range corr.Vals {
		if v < -1.0 || v > 1.0 {
			t.Fatalf("row %d: correlation %v outside [-1, 1]", i, v)
		}
	}
	if v := corr.Vals[n-1]; math.Abs(v-1.0) > 1e-9 {
		t.Fatalf("identical return streams should correlate at 1.0, got %v", v)
	}
	vol, _ := f.Column("vol_BTC_5m")
	if vol.Vals[0] != 0.0 {
		t.Fatalf("single-sample volatility must be 0.0, got %v", vol.Vals[0])
	}
	if vol.Vals[1] <= 0.0 {
		t.Fatalf("volatility must carry a real estimate from the second row, got %v", vol.Vals[1])
	}
}

func TestMicrostructureNegativeCorrelation(t *testing.T) {
	n := 16
	btc := make([]float64, n)
	doge := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price *= 1.0 + 0.01*float64(i%3)
		btc[i] = price
		doge[i] = 1000.0 / price // exactly inverted log returns
	}
	f := alignedFrame(t, map[string][]float64{"BTC": btc, "DOGE": doge})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewMicrostructure([]string{"5m"}, nil).Apply(f); err != nil {
		t.Fatalf("micro: %v", err)
	}
	corr, _ := f.Column("corr_DOGE_BTC_5m")
	if v := corr.Vals[n-1]; math.Abs(v+1.0) > 1e-9 {
		t.Fatalf("inverted return streams should correlate at -1.0, got %v", v)
	}
}

func TestMicrostructureSkipsCorrelationsWithoutAnchor(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{
		"BTC":  {100, 101, 102, 103},
		"DOGE": {1, 1.1, 1.2, 1.3},
	})
	f.SetAttr("anchor_symbol", "ETH") // no such return column
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewMicrostructure([]string{"3m"}, nil).Apply(f); err != nil {
		t.Fatalf("micro: %v", err)
	}
	if !f.HasColumn("vol_BTC_3m") || !f.HasColumn("vol_DOGE_3m") {
		t.Fatalf("volatility columns must still be produced")
	}
	for _, name := range f.Columns() {
		if len(name) >= 5 && name[:5] == "corr_" {
			t.Fatalf("correlation column %s produced despite missing anchor", name)
		}
	}
}

func TestStatArbZeroVarianceBeta(t *testing.T) {
	n := 12
	btc := make([]float64, n)
	flat := make([]float64, n)
	for i := 0; i < n; i++ {
		btc[i] = 100 * math.Pow(1.01, float64(i))
		flat[i] = 50 // constant anchor price, zero variance
	}
	f := alignedFrame(t, map[string][]float64{"BTC": btc, "DOGE": flat})
	f.SetAttr("anchor_symbol", "DOGE")
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewStatArb("5m", "5m", "", nil).Apply(f); err != nil {
		t.Fatalf("statarb: %v", err)
	}

	beta, _ := f.Column("beta_BTC_DOGE")
	for i, v := range beta.Vals {
		if v != 0.0 {
			t.Fatalf("row %d: zero-variance anchor must give beta exactly 0.0, got %v", i, v)
		}
	}
	// Zero beta propagates: the spread degenerates to the raw log price.
	spread, _ := f.Column("spread_BTC")
	logBTC, _ := f.Column("log_BTC")
	for i := range spread.Vals {
		if spread.Vals[i] != logBTC.Vals[i] {
			t.Fatalf("row %d: spread should equal log price when beta is 0, got %v want %v", i, spread.Vals[i], logBTC.Vals[i])
		}
	}
}

func TestStatArbRequiresReturnsTier(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{"BTC": {100, 110}})
	if _, err := NewStatArb("1h", "1d", "", nil).Apply(f); err == nil {
		t.Fatalf("expected error without log price columns")
	}
}

func TestStatArbNeedsTwoSymbols(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{"BTC": {100, 110, 121}})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewStatArb("1h", "1d", "", nil).Apply(f); err == nil {
		t.Fatalf("expected error with a single symbol")
	}
}

func TestStatArbTargetsEveryNonAnchorSymbol(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{
		"BTC":  {100, 101, 102, 103, 104, 105},
		"DOGE": {1, 1.01, 1.02, 1.03, 1.04, 1.05},
		"ETH":  {10, 10.1, 10.2, 10.3, 10.4, 10.5},
	})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewStatArb("3m", "3m", "", nil).Apply(f); err != nil {
		t.Fatalf("statarb: %v", err)
	}
	for _, name := range []string{
		"beta_DOGE_BTC", "beta_ETH_BTC",
		"spread_DOGE", "spread_ETH",
		"z_score_DOGE", "z_score_ETH",
	} {
		if !f.HasColumn(name) {
			t.Fatalf("missing feature column %s", name)
		}
	}
	if f.HasColumn("beta_DOGE_ETH") || f.HasColumn("spread_BTC") {
		t.Fatalf("anchor must not be hedged against non-anchor symbols")
	}
}

func TestWarmupRowsCarryEarlyEstimates(t *testing.T) {
	// Long windows must not zero out everything before the window fills:
	// estimates start as soon as the min-periods floor is met.
	btc := []float64{100, 101, 103, 106, 110, 115, 121, 128, 136, 145}
	doge := []float64{50, 50.8, 51.1, 52.0, 53.0, 53.3, 54.1, 55.2, 56.0, 57.3}
	f := alignedFrame(t, map[string][]float64{"BTC": btc, "DOGE": doge})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewMicrostructure([]string{"1h"}, nil).Apply(f); err != nil {
		t.Fatalf("micro: %v", err)
	}
	if _, err := NewStatArb("1h", "1h", "", nil).Apply(f); err != nil {
		t.Fatalf("statarb: %v", err)
	}

	if vol, _ := f.Value("vol_BTC_1h", 1); vol <= 0.0 {
		t.Fatalf("vol at row 1 must be a real estimate, got %v", vol)
	}
	if beta, _ := f.Value("beta_DOGE_BTC", 1); beta == 0.0 {
		t.Fatalf("beta at row 1 must be a real estimate with a varying anchor")
	}
	if z, _ := f.Value("z_score_DOGE", 1); z == 0.0 {
		t.Fatalf("z-score at row 1 must be a real estimate")
	}
	if beta, _ := f.Value("beta_DOGE_BTC", 0); beta != 0.0 {
		t.Fatalf("single-sample beta must be filled with 0.0, got %v", beta)
	}
	if z, _ := f.Value("z_score_DOGE", 0); z != 0.0 {
		t.Fatalf("single-sample z-score must be filled with 0.0, got %v", z)
	}
}

func TestTiersRecordParameterLineage(t *testing.T) {
	f := alignedFrame(t, map[string][]float64{
		"BTC":  {100, 101, 102, 103, 104, 105},
		"DOGE": {1, 1.01, 1.02, 1.03, 1.04, 1.05},
	})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewMicrostructure([]string{"5m", "1h"}, nil).Apply(f); err != nil {
		t.Fatalf("micro: %v", err)
	}
	if _, err := NewStatArb("3m", "5m", "", nil).Apply(f); err != nil {
		t.Fatalf("statarb: %v", err)
	}
	for key, want := range map[string]string{
		"vol_windows":    "5m,1h",
		"beta_window":    "3m",
		"zscore_window":  "5m",
		"statarb_anchor": "BTC",
	} {
		if got, ok := f.Attr(key); !ok || got != want {
			t.Fatalf("lineage attr %s: got %q want %q", key, got, want)
		}
	}
}

func TestZScoreFiniteEverywhere(t *testing.T) {
	n := 20
	btc := make([]float64, n)
	doge := make([]float64, n)
	for i := 0; i < n; i++ {
		btc[i] = 100 + float64(i%4)
		doge[i] = 50 + float64((i+1)%3)
	}
	f := alignedFrame(t, map[string][]float64{"BTC": btc, "DOGE": doge})
	if _, err := NewReturns(nil).Apply(f); err != nil {
		t.Fatalf("returns: %v", err)
	}
	if _, err := NewStatArb("5m", "5m", "", nil).Apply(f); err != nil {
		t.Fatalf("statarb: %v", err)
	}
	z, _ := f.Column("z_score_DOGE")
	for i, v := range z.Vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("row %d: z-score must stay finite, got %v", i, v)
		}
	}
}
