package forecast

import (
	"fmt"
	"math"

	"fishcast/internal/models"
)

// DefaultOrders are the fixed per-variable ARIMA specifications, chosen
// offline by AIC search over a year of daily data.
var DefaultOrders = map[models.Variable]models.ModelOrder{
	models.VarAirTemp:   {P: 1, D: 1, Q: 3},
	models.VarPressure:  {P: 1, D: 1, Q: 2},
	models.VarWindSpeed: {P: 1, D: 1, Q: 3},
	models.VarWaterTemp: {P: 1, D: 1, Q: 3},
}

const (
	// minFitLen is the minimum series length accepted for fitting, after
	// differencing.
	minFitLen = 30

	// degenerateVariance is the variance floor below which a differenced
	// series is treated as constant and the fit refused.
	degenerateVariance = 1e-12

	// longAROrder is the order of the long autoregression used to proxy
	// innovations in the first Hannan-Rissanen stage.
	longAROrder = 20
)

// Model is a fitted ARIMA(p,d,q) model. Estimation is Hannan-Rissanen:
// a long autoregression produces innovation proxies, then the AR and MA
// coefficients come from a single least-squares regression on lagged values
// and lagged innovations. Fully deterministic for identical input.
type Model struct {
	Order     models.ModelOrder
	intercept float64
	phi       []float64 // AR coefficients, lag 1..p
	theta     []float64 // MA coefficients, lag 1..q

	w        []float64 // differenced series
	resid    []float64 // innovations aligned with w (zero before the fit sample)
	lastVals []float64 // last observed value at each integration level, 0..d-1
}

// FitARIMA fits the model to a raw series. It fails with ModelFitError on
// degenerate input (too short, zero variance after differencing, singular
// regression) instead of returning unusable coefficients.
func FitARIMA(values []float64, order models.ModelOrder) (*Model, error) {
	if order.P < 0 || order.D < 0 || order.Q < 0 {
		return nil, fitErr("invalid order %s", order)
	}
	if order.P == 0 && order.Q == 0 {
		return nil, fitErr("order %s has no AR or MA terms", order)
	}

	w := append([]float64(nil), values...)
	lastVals := make([]float64, order.D)
	for level := 0; level < order.D; level++ {
		if len(w) < 2 {
			return nil, fitErr("series too short to difference %d times", order.D)
		}
		lastVals[level] = w[len(w)-1]
		w = difference(w)
	}

	if len(w) < minFitLen {
		return nil, fitErr("series has %d points after differencing, need %d", len(w), minFitLen)
	}
	if sampleVariance(w) < degenerateVariance {
		return nil, fitErr("series is constant after differencing, nothing to fit")
	}

	p, q := order.P, order.Q

	// Stage 1: long AR to estimate innovations.
	m := longAROrder
	if max := len(w) / 4; m > max {
		m = max
	}
	if m < p+q {
		m = p + q
	}
	arBeta, err := olsLagged(w, nil, m, 0)
	if err != nil {
		return nil, fitErr("long AR stage: %v", err)
	}
	resid := make([]float64, len(w))
	for t := m; t < len(w); t++ {
		pred := arBeta[0]
		for i := 1; i <= m; i++ {
			pred += arBeta[i] * w[t-i]
		}
		resid[t] = w[t] - pred
	}

	// Stage 2: regress on p value lags and q innovation lags.
	beta, err := olsLagged(w, resid, p, q)
	if err != nil {
		return nil, fitErr("ARMA stage: %v", err)
	}

	model := &Model{
		Order:     order,
		intercept: beta[0],
		phi:       beta[1 : 1+p],
		theta:     beta[1+p : 1+p+q],
		w:         w,
		lastVals:  lastVals,
	}

	// Final innovations under the fitted coefficients, for the MA
	// recursion at forecast time.
	t0 := startIndex(p, q, m)
	final := make([]float64, len(w))
	for t := t0; t < len(w); t++ {
		final[t] = w[t] - model.predictAt(w, final, t)
	}
	model.resid = final
	return model, nil
}

// predictAt computes the one-step prediction of w[t] from history before t.
func (m *Model) predictAt(w, resid []float64, t int) float64 {
	v := m.intercept
	for i := 1; i <= m.Order.P; i++ {
		v += m.phi[i-1] * w[t-i]
	}
	for j := 1; j <= m.Order.Q; j++ {
		if t-j >= 0 {
			v += m.theta[j-1] * resid[t-j]
		}
	}
	return v
}

// Forecast produces point forecasts for the given number of steps,
// un-differencing back to the original scale. Future innovations are zero.
func (m *Model) Forecast(steps int) ([]float64, error) {
	if steps <= 0 {
		return nil, fitErr("forecast steps must be positive, got %d", steps)
	}

	w := append([]float64(nil), m.w...)
	resid := append([]float64(nil), m.resid...)
	out := make([]float64, 0, steps)
	for h := 0; h < steps; h++ {
		t := len(w)
		w = append(w, 0)
		resid = append(resid, 0)
		v := m.predictAt(w, resid, t)
		w[t] = v
		out = append(out, v)
	}

	// Integrate back through each differencing level.
	for level := m.Order.D - 1; level >= 0; level-- {
		prev := m.lastVals[level]
		for i := range out {
			prev += out[i]
			out[i] = prev
		}
	}

	scale := 1.0
	for _, v := range m.w {
		if a := math.Abs(v); a > scale {
			scale = a
		}
	}
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e6*scale {
			return nil, fitErr("forecast diverged, model did not converge")
		}
	}
	return out, nil
}

// SelectOrder runs a bounded grid search (p,q in 0..3, d in 0..1)
// minimizing AIC. The scan order is fixed, so selection is deterministic
// for identical input.
func SelectOrder(values []float64) (models.ModelOrder, error) {
	best := models.ModelOrder{}
	bestAIC := math.Inf(1)
	found := false
	for d := 0; d <= 1; d++ {
		for p := 0; p <= 3; p++ {
			for q := 0; q <= 3; q++ {
				if p == 0 && q == 0 {
					continue
				}
				order := models.ModelOrder{P: p, D: d, Q: q}
				model, err := FitARIMA(values, order)
				if err != nil {
					continue
				}
				aic, err := model.aic()
				if err != nil {
					continue
				}
				if aic < bestAIC {
					bestAIC = aic
					best = order
					found = true
				}
			}
		}
	}
	if !found {
		return models.ModelOrder{}, fitErr("no candidate order produced a usable fit")
	}
	return best, nil
}

func (m *Model) aic() (float64, error) {
	t0 := startIndex(m.Order.P, m.Order.Q, longAROrder)
	if t0 >= len(m.w) {
		return 0, fmt.Errorf("no residual sample")
	}
	var sse float64
	n := 0
	for t := t0; t < len(m.w); t++ {
		sse += m.resid[t] * m.resid[t]
		n++
	}
	if n == 0 || sse <= 0 {
		return 0, fmt.Errorf("degenerate residuals")
	}
	k := float64(m.Order.P + m.Order.Q + 1)
	return float64(n)*math.Log(sse/float64(n)) + 2*k, nil
}

func startIndex(p, q, m int) int {
	t0 := m + q
	if p > t0 {
		t0 = p
	}
	return t0
}

func difference(v []float64) []float64 {
	out := make([]float64, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i] - v[i-1]
	}
	return out
}

func sampleVariance(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var ss float64
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(v)-1)
}

// olsLagged regresses w[t] on an intercept, p lags of w, and q lags of
// resid (when resid is non-nil), returning [intercept, phi..., theta...].
func olsLagged(w, resid []float64, p, q int) ([]float64, error) {
	t0 := p
	if resid != nil {
		if s := startIndex(p, q, longARStart(w, p, q)); s > t0 {
			t0 = s
		}
	}
	k := 1 + p + q
	rows := len(w) - t0
	if rows < k+2 {
		return nil, fmt.Errorf("only %d usable rows for %d coefficients", rows, k)
	}

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)

	row := make([]float64, k)
	for t := t0; t < len(w); t++ {
		row[0] = 1
		for i := 1; i <= p; i++ {
			row[i] = w[t-i]
		}
		for j := 1; j <= q; j++ {
			row[p+j] = resid[t-j]
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * w[t]
		}
	}

	return solve(xtx, xty)
}

// longARStart mirrors the innovation alignment of the first fitting stage:
// residual proxies are zero before the long-AR order, so the second-stage
// sample must start past it.
func longARStart(w []float64, p, q int) int {
	m := longAROrder
	if max := len(w) / 4; m > max {
		m = max
	}
	if m < p+q {
		m = p + q
	}
	return m
}

// solve runs Gaussian elimination with partial pivoting on a copy of the
// inputs. Near-singular systems fail rather than producing garbage.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-10 {
			return nil, fmt.Errorf("singular normal equations")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite solution")
		}
	}
	return x, nil
}

func fitErr(format string, args ...any) error {
	return models.Errf(models.KindModelFit, models.StageForecasting, format, args...)
}
