package stats

import "math"

// BandSet holds Bollinger Bands aligned to the input series. The first
// window-1 entries of each band are NaN while the rolling window fills.
type BandSet struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// BollingerBands computes a rolling mean band with upper and lower bands
// offset by numStd sample standard deviations (n-1 denominator) over a
// trailing window.
func BollingerBands(data []float64, window int, numStd float64) (BandSet, error) {
	if window < 2 {
		return BandSet{}, ErrSeriesTooShort
	}
	if window > len(data) {
		return BandSet{}, ErrWindowTooLarge
	}
	n := len(data)
	bands := BandSet{
		Middle: make([]float64, n),
		Upper:  make([]float64, n),
		Lower:  make([]float64, n),
	}
	for i := 0; i < window-1; i++ {
		bands.Middle[i] = math.NaN()
		bands.Upper[i] = math.NaN()
		bands.Lower[i] = math.NaN()
	}
	for i := window - 1; i < n; i++ {
		win := data[i-window+1 : i+1]
		sum := 0.0
		for _, x := range win {
			sum += x
		}
		mid := sum / float64(window)
		std := sampleStd(win)
		bands.Middle[i] = mid
		bands.Upper[i] = mid + numStd*std
		bands.Lower[i] = mid - numStd*std
	}
	return bands, nil
}
