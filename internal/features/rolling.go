package features

import "math"

// Rolling statistics over trailing windows. A window ending at row i covers
// rows [i-size+1, i]; rows with fewer than minPeriods valid samples produce
// 0.0 so downstream columns never carry nulls or NaNs.

func rollingMean(vals []float64, valid []bool, size, minPeriods int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		sum, n := 0.0, 0
		for j := windowStart(i, size); j <= i; j++ {
			if valid == nil || valid[j] {
				sum += vals[j]
				n++
			}
		}
		if n >= minPeriods && n > 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// rollingStd is the sample standard deviation (ddof=1).
func rollingStd(vals []float64, valid []bool, size, minPeriods int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		v, n := windowVariance(vals, valid, i, size)
		if n >= minPeriods && n >= 2 {
			out[i] = math.Sqrt(v)
		}
	}
	return out
}

// rollingCorr is the sample Pearson correlation between two columns. Rows
// where either side is null are excluded from the window. Near-zero
// variance on either side yields 0.0, and results are clamped to [-1, 1]
// against float drift.
func rollingCorr(a []float64, av []bool, b []float64, bv []bool, size, minPeriods int) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		cov, varA, varB, n := windowCovariance(a, av, b, bv, i, size)
		if n < minPeriods || n < 2 {
			continue
		}
		denom := math.Sqrt(varA * varB)
		if denom < 1e-18 || math.IsNaN(denom) {
			continue
		}
		c := cov / denom
		out[i] = math.Max(-1.0, math.Min(1.0, c))
	}
	return out
}

// rollingBeta regresses a on b over the trailing window: cov(a,b)/var(b).
// A near-zero regressor variance yields 0.0 instead of an exploding ratio.
func rollingBeta(a []float64, av []bool, b []float64, bv []bool, size, minPeriods int) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		cov, _, varB, n := windowCovariance(a, av, b, bv, i, size)
		if n < minPeriods || n < 2 {
			continue
		}
		if varB < 1e-9 || math.IsNaN(varB) {
			continue
		}
		out[i] = cov / varB
	}
	return out
}

// rollingCount returns how many valid samples each trailing window holds.
func rollingCount(valid []bool, size int) []int {
	out := make([]int, len(valid))
	for i := range valid {
		n := 0
		for j := windowStart(i, size); j <= i; j++ {
			if valid[j] {
				n++
			}
		}
		out[i] = n
	}
	return out
}

func windowStart(i, size int) int {
	if j := i - size + 1; j > 0 {
		return j
	}
	return 0
}

// windowVariance returns the sample variance and the valid-sample count of
// the window ending at row i.
func windowVariance(vals []float64, valid []bool, i, size int) (float64, int) {
	sum, n := 0.0, 0
	start := windowStart(i, size)
	for j := start; j <= i; j++ {
		if valid == nil || valid[j] {
			sum += vals[j]
			n++
		}
	}
	if n < 2 {
		return 0, n
	}
	mean := sum / float64(n)
	ss := 0.0
	for j := start; j <= i; j++ {
		if valid == nil || valid[j] {
			d := vals[j] - mean
			ss += d * d
		}
	}
	return ss / float64(n-1), n
}

// windowCovariance returns the pairwise sample covariance and both sample
// variances over the rows where both columns are valid.
func windowCovariance(a []float64, av []bool, b []float64, bv []bool, i, size int) (cov, varA, varB float64, n int) {
	start := windowStart(i, size)
	sumA, sumB := 0.0, 0.0
	for j := start; j <= i; j++ {
		if pairValid(av, bv, j) {
			sumA += a[j]
			sumB += b[j]
			n++
		}
	}
	if n < 2 {
		return 0, 0, 0, n
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)
	for j := start; j <= i; j++ {
		if pairValid(av, bv, j) {
			da, db := a[j]-meanA, b[j]-meanB
			cov += da * db
			varA += da * da
			varB += db * db
		}
	}
	denom := float64(n - 1)
	return cov / denom, varA / denom, varB / denom, n
}

func pairValid(av, bv []bool, j int) bool {
	return (av == nil || av[j]) && (bv == nil || bv[j])
}
