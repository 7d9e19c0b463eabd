package stats

import "math"

// Mean returns the arithmetic mean of data.
func Mean(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptySeries
	}
	sum := 0.0
	for _, x := range data {
		sum += x
	}
	return sum / float64(len(data)), nil
}

// Variance returns the population variance of data.
func Variance(data []float64) (float64, error) {
	m, err := Mean(data)
	if err != nil {
		return 0, err
	}
	ss := 0.0
	for _, x := range data {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(data)), nil
}

// StdDev returns the population standard deviation of data.
func StdDev(data []float64) (float64, error) {
	v, err := Variance(data)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// sampleStd is the n-1 denominator standard deviation used by rolling
// estimators. Requires len(data) >= 2.
func sampleStd(data []float64) float64 {
	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		sum += x
	}
	m := sum / n
	ss := 0.0
	for _, x := range data {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}
