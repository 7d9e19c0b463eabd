package stats

import "math"

// ADFResult holds the outcome of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	Lags           int
	NObs           int
	CriticalValues map[string]float64 // "1%", "5%", "10%"
}

// IsStationary reports whether the unit-root hypothesis is rejected at the
// 5% level, i.e. the series behaves as mean-reverting rather than a random
// walk.
func (r ADFResult) IsStationary() bool {
	return r.Statistic < r.CriticalValues["5%"]
}

// ADFTest runs a fixed-lag Augmented Dickey-Fuller regression with a
// constant term:
//
//	Δy_t = α + γ·y_{t-1} + Σ φ_i·Δy_{t-i} + ε_t
//
// The statistic is the t-ratio of γ. P-values use the MacKinnon (1994)
// approximation and critical values the MacKinnon (2010) response surface.
func ADFTest(data []float64, lag int) (ADFResult, error) {
	if lag < 0 {
		lag = 0
	}
	n := len(data)
	// Need lag+1 differenced lags plus headroom for the regression itself.
	if n < lag+5 {
		return ADFResult{}, ErrSeriesTooShort
	}
	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = data[i] - data[i-1]
	}
	nobs := len(diffs) - lag
	k := 2 + lag
	if nobs <= k {
		return ADFResult{}, ErrSeriesTooShort
	}
	design := make([][]float64, nobs)
	dep := make([]float64, nobs)
	for i := 0; i < nobs; i++ {
		t := i + lag
		row := make([]float64, k)
		row[0] = 1
		row[1] = data[t] // level lagged one step behind diffs[t]
		for j := 1; j <= lag; j++ {
			row[1+j] = diffs[t-j]
		}
		design[i] = row
		dep[i] = diffs[t]
	}
	fit, err := olsFit(design, dep)
	if err != nil {
		return ADFResult{}, err
	}
	if fit.stderr[1] == 0 {
		return ADFResult{}, ErrSingularMatrix
	}
	stat := fit.coef[1] / fit.stderr[1]
	return ADFResult{
		Statistic:      stat,
		PValue:         mackinnonPValue(stat),
		Lags:           lag,
		NObs:           nobs,
		CriticalValues: mackinnonCriticalValues(nobs),
	}, nil
}

// mackinnonCriticalValues evaluates the MacKinnon (2010) response-surface
// polynomials for the constant-only regression.
func mackinnonCriticalValues(nobs int) map[string]float64 {
	t := float64(nobs)
	return map[string]float64{
		"1%":  -3.43035 - 6.5393/t - 16.786/(t*t) - 79.433/(t*t*t),
		"5%":  -2.86154 - 2.8903/t - 4.234/(t*t) - 40.040/(t*t*t),
		"10%": -2.56677 - 1.5384/t - 2.809/(t*t),
	}
}

// MacKinnon (1994) approximate asymptotic p-value for the constant-only case.
func mackinnonPValue(stat float64) float64 {
	const (
		tauMax  = 2.74
		tauMin  = -18.83
		tauStar = -1.61
	)
	if stat > tauMax {
		return 1
	}
	if stat < tauMin {
		return 0
	}
	var z float64
	if stat <= tauStar {
		z = 2.1659 + 1.4412*stat + 0.038269*stat*stat
	} else {
		z = 1.7339 + 0.93202*stat - 0.12745*stat*stat - 0.010368*stat*stat*stat
	}
	return normCDF(z)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
