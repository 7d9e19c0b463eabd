package stats

import (
	"math"
	"sort"
)

// JohansenResult holds the multivariate cointegration trace test outcome.
type JohansenResult struct {
	Eigenvalues     []float64
	TraceStatistics []float64    // statistic for H0: rank <= r, r = 0..n-1
	CriticalValues  [][3]float64 // 90%, 95%, 99% per hypothesis
	Rank            int
}

// Trace-statistic critical values (Osterwald-Lenum / MacKinnon-Haug-Michelis)
// indexed by the number of remaining series m = n - r, for m = 1..12.
var johansenTraceCV = map[int][12][3]float64{
	// No deterministic terms.
	-1: {
		{2.9762, 4.1296, 6.9406},
		{10.4741, 12.3212, 16.3640},
		{21.7781, 24.2761, 29.5147},
		{37.0339, 40.1749, 46.5716},
		{56.2839, 60.0627, 67.6367},
		{79.5329, 83.9383, 92.7136},
		{106.7351, 111.7797, 121.7375},
		{137.9954, 143.6691, 154.7977},
		{173.2292, 179.5199, 191.8122},
		{212.4721, 219.4051, 232.8291},
		{255.6732, 263.2603, 277.9962},
		{302.9054, 311.1288, 326.9716},
	},
	// Constant term only.
	0: {
		{2.7055, 3.8415, 6.6349},
		{13.4294, 15.4943, 19.9349},
		{27.0669, 29.7961, 35.4628},
		{44.4929, 47.8545, 54.6815},
		{65.8202, 69.8189, 77.8202},
		{91.1090, 95.7542, 104.9637},
		{120.3673, 125.6185, 135.9825},
		{153.6341, 159.5290, 171.0905},
		{190.8714, 197.3772, 210.0366},
		{232.1030, 239.2468, 253.2526},
		{277.3740, 285.1402, 300.2821},
		{326.5354, 334.9795, 351.2150},
	},
}

// JohansenTest estimates the cointegration rank of a set of series via the
// trace statistic. series is a list of equal-length series, detOrder selects
// the deterministic terms (-1 none, 0 constant) and kARDiff the number of
// lagged differences in the auxiliary regressions.
//
// The rank is decided monotonically: hypotheses H0: rank <= r are tested in
// increasing r against the 95% critical value, stopping at the first that
// fails to reject.
func JohansenTest(series [][]float64, detOrder, kARDiff int) (JohansenResult, error) {
	cvTable, ok := johansenTraceCV[detOrder]
	if !ok {
		return JohansenResult{}, ErrUnsupportedDetOrder
	}
	n := len(series)
	if n < 2 || n > 12 {
		return JohansenResult{}, ErrSeriesTooShort
	}
	if kARDiff < 0 {
		kARDiff = 0
	}
	tLen := len(series[0])
	for _, s := range series {
		if len(s) != tLen {
			return JohansenResult{}, ErrLengthMismatch
		}
	}
	nobs := tLen - 1 - kARDiff
	regs := n*kARDiff + boolToInt(detOrder >= 0)
	if nobs <= regs+n {
		return JohansenResult{}, ErrSeriesTooShort
	}

	// Observation t covers diffs index t = kARDiff .. tLen-2, where
	// diff[t] = y[t+1] - y[t] and the lagged level is y[t].
	design := make([][]float64, nobs)
	dDep := make([][]float64, nobs)
	lDep := make([][]float64, nobs)
	diff := func(v []float64, t int) float64 { return v[t+1] - v[t] }
	for i := 0; i < nobs; i++ {
		t := i + kARDiff
		row := make([]float64, 0, regs)
		if detOrder >= 0 {
			row = append(row, 1)
		}
		for j := 1; j <= kARDiff; j++ {
			for _, s := range series {
				row = append(row, diff(s, t-j))
			}
		}
		design[i] = row
		d := make([]float64, n)
		l := make([]float64, n)
		for c, s := range series {
			d[c] = diff(s, t)
			l[c] = s[t]
		}
		dDep[i] = d
		lDep[i] = l
	}

	r0, err := residuals(design, dDep)
	if err != nil {
		return JohansenResult{}, err
	}
	r1, err := residuals(design, lDep)
	if err != nil {
		return JohansenResult{}, err
	}

	s00 := scaledCross(r0, r0, nobs)
	s11 := scaledCross(r1, r1, nobs)
	s01 := scaledCross(r0, r1, nobs)
	s10 := matTranspose(s01)

	// Reduce the generalized problem |λS11 - S10 S00^-1 S01| = 0 to a
	// symmetric eigenproblem via the Cholesky factor of S11.
	l, err := cholesky(s11)
	if err != nil {
		return JohansenResult{}, err
	}
	s00inv, err := matInverse(s00)
	if err != nil {
		return JohansenResult{}, err
	}
	core := matMul(s10, matMul(s00inv, s01))
	half := lowerSolve(l, core)
	sym := matTranspose(lowerSolve(l, matTranspose(half)))

	eig := jacobiEigenvalues(sym)
	sort.Sort(sort.Reverse(sort.Float64Slice(eig)))
	for i, v := range eig {
		// Numerical noise can push eigenvalues slightly outside [0, 1).
		eig[i] = math.Min(math.Max(v, 0), 1-1e-12)
	}

	res := JohansenResult{
		Eigenvalues:     eig,
		TraceStatistics: make([]float64, n),
		CriticalValues:  make([][3]float64, n),
	}
	for r := 0; r < n; r++ {
		sum := 0.0
		for j := r; j < n; j++ {
			sum += math.Log(1 - eig[j])
		}
		res.TraceStatistics[r] = -float64(nobs) * sum
		res.CriticalValues[r] = cvTable[n-r-1]
	}
	for r := 0; r < n; r++ {
		if res.TraceStatistics[r] <= res.CriticalValues[r][1] {
			break
		}
		res.Rank = r + 1
	}
	return res, nil
}

func scaledCross(a, b [][]float64, nobs int) [][]float64 {
	out := matMul(matTranspose(a), b)
	for i := range out {
		for j := range out[i] {
			out[i][j] /= float64(nobs)
		}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
