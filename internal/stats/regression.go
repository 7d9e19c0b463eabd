package stats

import "math"

// LinearRegression fits Y = slope*X + intercept by ordinary least squares.
func LinearRegression(x, y []float64) (slope, intercept float64, err error) {
	if len(x) != len(y) {
		return 0, 0, ErrLengthMismatch
	}
	if len(x) < 2 {
		return 0, 0, ErrSeriesTooShort
	}
	n := float64(len(x))
	var sx, sy, sxx, sxy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return 0, 0, ErrSingularMatrix
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept, nil
}

// MultipleRegression fits Y = b0 + b1*x1 + ... + bn*xn over observation rows
// and returns [b0, b1, ..., bn].
func MultipleRegression(rows [][]float64, y []float64) ([]float64, error) {
	if len(rows) != len(y) {
		return nil, ErrLengthMismatch
	}
	if len(rows) == 0 {
		return nil, ErrEmptySeries
	}
	vars := len(rows[0])
	design := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != vars {
			return nil, ErrLengthMismatch
		}
		design[i] = append([]float64{1}, row...)
	}
	fit, err := olsFit(design, y)
	if err != nil {
		return nil, err
	}
	return fit.coef, nil
}

// olsResult carries everything downstream estimators need from one OLS fit.
type olsResult struct {
	coef   []float64
	stderr []float64
	resid  []float64
}

// olsFit solves the normal equations for an explicit design matrix (callers
// include their own intercept column when they want one).
func olsFit(design [][]float64, y []float64) (olsResult, error) {
	n := len(design)
	if n == 0 {
		return olsResult{}, ErrEmptySeries
	}
	k := len(design[0])
	if k == 0 || n < k {
		return olsResult{}, ErrSeriesTooShort
	}
	xt := matTranspose(design)
	ycol := make([][]float64, n)
	for i := range y {
		ycol[i] = []float64{y[i]}
	}
	xtx := matMul(xt, design)
	xty := matMul(xt, ycol)
	inv, err := matInverse(xtx)
	if err != nil {
		return olsResult{}, err
	}
	bcol := matMul(inv, xty)

	res := olsResult{
		coef:   make([]float64, k),
		stderr: make([]float64, k),
		resid:  make([]float64, n),
	}
	for i := 0; i < k; i++ {
		res.coef[i] = bcol[i][0]
	}
	rss := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += design[i][j] * res.coef[j]
		}
		res.resid[i] = y[i] - fitted
		rss += res.resid[i] * res.resid[i]
	}
	if n > k {
		sigma2 := rss / float64(n-k)
		for i := 0; i < k; i++ {
			res.stderr[i] = math.Sqrt(sigma2 * inv[i][i])
		}
	}
	return res, nil
}

// residuals regresses each column of dep on the shared design matrix and
// returns the residual matrix. An empty design passes dep through unchanged.
func residuals(design, dep [][]float64) ([][]float64, error) {
	n := len(dep)
	cols := len(dep[0])
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	if len(design) == 0 || len(design[0]) == 0 {
		for i := range dep {
			copy(out[i], dep[i])
		}
		return out, nil
	}
	for c := 0; c < cols; c++ {
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			y[i] = dep[i][c]
		}
		fit, err := olsFit(design, y)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out[i][c] = fit.resid[i]
		}
	}
	return out, nil
}
