package stats

import "math"

// HalfLife estimates how long a mean-reverting series takes to close half of
// a deviation from its mean. The series is regressed on its one-step lag
// with an explicit intercept; the lag coefficient β gives
//
//	half-life = -ln(2) / ln(β)
//
// ok is false when β >= 1 (no mean reversion) or β <= 0 (no well-defined
// half-life); no numeric value is returned in that case.
func HalfLife(data []float64) (halfLife float64, ok bool, err error) {
	if len(data) < 3 {
		return 0, false, ErrSeriesTooShort
	}
	lagged := data[:len(data)-1]
	current := data[1:]
	beta, _, err := LinearRegression(lagged, current)
	if err != nil {
		return 0, false, err
	}
	if beta >= 1 || beta <= 0 {
		return 0, false, nil
	}
	return -math.Ln2 / math.Log(beta), true, nil
}
