package stats

import "math"

// minHurstWindow is the smallest rescaled-range segment length. Shorter
// segments make the R/S estimate unusable.
const minHurstWindow = 8

// HurstExponent estimates the Hurst exponent by rescaled-range analysis.
// The series is split into segments at several window lengths, the average
// R/S is computed per length, and H is the slope of log(R/S) on log(n).
// H < 0.5 indicates mean reversion, H ~ 0.5 a random walk, H > 0.5 trending.
//
// At least two distinct window lengths are required; a single-window
// estimate is numerically unstable.
func HurstExponent(data []float64) (float64, error) {
	n := len(data)
	if n < 2*minHurstWindow {
		return 0, ErrSeriesTooShort
	}
	var logN, logRS []float64
	for w := n; w >= minHurstWindow; w /= 2 {
		rs, ok := avgRescaledRange(data, w)
		if !ok {
			continue
		}
		logN = append(logN, math.Log(float64(w)))
		logRS = append(logRS, math.Log(rs))
	}
	if len(logN) < 2 {
		return 0, ErrSeriesTooShort
	}
	slope, _, err := LinearRegression(logN, logRS)
	if err != nil {
		return 0, err
	}
	return slope, nil
}

// avgRescaledRange computes the mean R/S statistic over consecutive
// segments of length w. Segments with zero dispersion are skipped.
func avgRescaledRange(data []float64, w int) (float64, bool) {
	segments := len(data) / w
	if segments == 0 {
		return 0, false
	}
	sum := 0.0
	count := 0
	for s := 0; s < segments; s++ {
		seg := data[s*w : (s+1)*w]
		m := 0.0
		for _, x := range seg {
			m += x
		}
		m /= float64(w)

		cum, minDev, maxDev := 0.0, math.Inf(1), math.Inf(-1)
		for _, x := range seg {
			cum += x - m
			if cum < minDev {
				minDev = cum
			}
			if cum > maxDev {
				maxDev = cum
			}
		}
		std := sampleStd(seg)
		if std == 0 || maxDev == minDev {
			continue
		}
		sum += (maxDev - minDev) / std
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
