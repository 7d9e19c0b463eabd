package stats

// CointegrationResult holds the Engle-Granger two-step test outcome.
type CointegrationResult struct {
	ADFStatistic   float64
	PValue         float64
	CriticalValues map[string]float64
	Cointegrated   bool
}

// CointegrationADF tests whether X and Y share a long-run equilibrium:
// Y is regressed on X (with intercept), then the residuals are checked for
// stationarity with an ADF test. Cointegration is decided by comparing the
// ADF statistic against the 5% critical value, not an ad hoc p-value cutoff.
func CointegrationADF(x, y []float64, lag int) (CointegrationResult, error) {
	if len(x) != len(y) {
		return CointegrationResult{}, ErrLengthMismatch
	}
	slope, intercept, err := LinearRegression(x, y)
	if err != nil {
		return CointegrationResult{}, err
	}
	resid := make([]float64, len(x))
	for i := range x {
		resid[i] = y[i] - (intercept + slope*x[i])
	}
	adf, err := ADFTest(resid, lag)
	if err != nil {
		return CointegrationResult{}, err
	}
	return CointegrationResult{
		ADFStatistic:   adf.Statistic,
		PValue:         adf.PValue,
		CriticalValues: adf.CriticalValues,
		Cointegrated:   adf.Statistic < adf.CriticalValues["5%"],
	}, nil
}
