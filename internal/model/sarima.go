package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"cagedcli/pkg/contracts/domain"
)

// seasonalPeriod is fixed at 12: the pipeline only models monthly series.
const seasonalPeriod = 12

// minHistory is the shortest series a seasonal fit is attempted on. Two
// full seasonal cycles are the floor below which the seasonal terms are
// pure noise.
const minHistory = 2 * seasonalPeriod

// SARIMA is a fitted seasonal ARIMA model, estimated by conditional sum of
// squares. Coefficients follow the usual sign convention: the AR polynomial
// is 1 - ar1*B - ..., the MA polynomial 1 + ma1*B + ....
type SARIMA struct {
	Order  domain.SARIMAOrder
	AR     []float64 // regular AR coefficients, length p
	MA     []float64 // regular MA coefficients, length q
	SAR    []float64 // seasonal AR coefficients, length P
	SMA    []float64 // seasonal MA coefficients, length Q
	Mean   float64   // mean of the differenced series
	Sigma2 float64   // residual variance
	AIC    float64

	series []float64 // original observations the model was fit on
	diffed []float64 // differenced, not de-meaned
	resid  []float64 // in-sample residuals of the differenced series
}

// FitSARIMA estimates one fixed-order model. It returns ErrInsufficientHistory
// for series shorter than two seasonal cycles and ErrFitFailed when the CSS
// objective cannot be minimized to a finite value.
func FitSARIMA(values []float64, order domain.SARIMAOrder) (*SARIMA, error) {
	if len(values) < minHistory {
		return nil, fmt.Errorf("%w: %d observations, need %d", ErrInsufficientHistory, len(values), minHistory)
	}
	order.SeasonalPeriod = seasonalPeriod

	w := difference(values, order.D, order.SD, seasonalPeriod)
	nParams := order.P + order.Q + order.SP + order.SQ
	if len(w) <= nParams+seasonalPeriod {
		return nil, fmt.Errorf("%w: %d observations after differencing for %d parameters",
			ErrInsufficientHistory, len(w), nParams)
	}

	mean := stat.Mean(w, nil)
	centered := make([]float64, len(w))
	for i, v := range w {
		centered[i] = v - mean
	}

	m := &SARIMA{Order: order, Mean: mean, series: values, diffed: w}

	objective := func(x []float64) float64 {
		ar, ma, sar, sma := splitParams(x, order)
		if penalty := stationarityPenalty(ar, ma, sar, sma); penalty > 0 {
			return 1e12 * penalty
		}
		css, _ := cssResiduals(centered, ar, ma, sar, sma)
		if math.IsNaN(css) || math.IsInf(css, 0) {
			return math.MaxFloat64
		}
		return css
	}

	var params []float64
	var css float64
	if nParams == 0 {
		css = objective(nil)
	} else {
		x0 := make([]float64, nParams)
		for i := range x0 {
			x0[i] = 0.1
		}
		result, err := optimize.Minimize(optimize.Problem{Func: objective}, x0, nil, &optimize.NelderMead{})
		if err != nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) || result.F >= math.MaxFloat64 {
			return nil, fmt.Errorf("%w: css minimization did not converge", ErrFitFailed)
		}
		params = result.X
		css = result.F
	}

	m.AR, m.MA, m.SAR, m.SMA = splitParams(params, order)
	_, m.resid = cssResiduals(centered, m.AR, m.MA, m.SAR, m.SMA)

	nEff := float64(len(m.resid))
	if nEff <= 0 {
		return nil, fmt.Errorf("%w: no residuals after conditioning", ErrFitFailed)
	}
	// A perfect fit on a deterministic series would send log(sigma2) to
	// -inf; floor the variance so AIC comparisons stay finite.
	m.Sigma2 = css / nEff
	if m.Sigma2 < 1e-12 {
		m.Sigma2 = 1e-12
	}
	m.AIC = nEff*math.Log(m.Sigma2) + 2*float64(nParams+1)
	return m, nil
}

// SearchSARIMA fits a grid of candidate orders and keeps the lowest-AIC
// model. Orders whose fit fails are skipped; the search only errors when the
// history is too short or every candidate failed.
func SearchSARIMA(values []float64) (*SARIMA, error) {
	if len(values) < minHistory {
		return nil, fmt.Errorf("%w: %d observations, need %d", ErrInsufficientHistory, len(values), minHistory)
	}
	var best *SARIMA
	for _, d := range []int{0, 1} {
		for _, sd := range []int{0, 1} {
			for p := 0; p <= 2; p++ {
				for q := 0; q <= 2; q++ {
					for sp := 0; sp <= 1; sp++ {
						for sq := 0; sq <= 1; sq++ {
							order := domain.SARIMAOrder{P: p, D: d, Q: q, SP: sp, SD: sd, SQ: sq}
							fit, err := FitSARIMA(values, order)
							if err != nil {
								continue
							}
							if best == nil || fit.AIC < best.AIC {
								best = fit
							}
						}
					}
				}
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no candidate order converged", ErrFitFailed)
	}
	return best, nil
}

// Forecast extends the series h months past its end, with (1-alpha)
// prediction intervals from the psi-weight representation of the full
// nonstationary model.
func (m *SARIMA) Forecast(h int, alpha float64) (point, low, high []float64) {
	// Forecast the differenced series around its mean, with future shocks
	// set to their zero expectation.
	arc := expandAR(m.AR, m.SAR, m.Order.SeasonalPeriod)
	mac := expandMA(m.MA, m.SMA, m.Order.SeasonalPeriod)

	n := len(m.diffed)
	w := make([]float64, n, n+h)
	for i, v := range m.diffed {
		w[i] = v - m.Mean
	}
	resid := make([]float64, n, n+h)
	copy(resid, m.resid)
	for t := n; t < n+h; t++ {
		v := 0.0
		for i, c := range arc {
			if idx := t - i - 1; idx >= 0 {
				v += c * w[idx]
			}
		}
		for j, c := range mac {
			if idx := t - j - 1; idx >= 0 {
				v += c * resid[idx]
			}
		}
		w = append(w, v)
		resid = append(resid, 0)
	}

	// Undo the de-meaning and both differencing layers to get levels.
	future := make([]float64, h)
	for i := 0; i < h; i++ {
		future[i] = w[n+i] + m.Mean
	}
	point = integrate(m.series, future, m.Order.D, m.Order.SD, m.Order.SeasonalPeriod)

	psi := m.psiWeights(h)
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - alpha/2)
	low = make([]float64, h)
	high = make([]float64, h)
	variance := 0.0
	for i := 0; i < h; i++ {
		variance += psi[i] * psi[i]
		se := math.Sqrt(m.Sigma2 * variance)
		low[i] = point[i] - z*se
		high[i] = point[i] + z*se
	}
	return point, low, high
}

// psiWeights expands the model into its MA(inf) form on the original scale,
// folding the differencing operators into the AR side so forecast error
// variance accumulates correctly for integrated series.
func (m *SARIMA) psiWeights(h int) []float64 {
	sp := m.Order.SeasonalPeriod
	full := polyMul(arPoly(m.AR), arPoly(seasonalCoeffs(m.SAR, sp)))
	full = polyMul(full, diffPoly(m.Order.D, 1))
	full = polyMul(full, diffPoly(m.Order.SD, sp))
	theta := polyMul(maPoly(m.MA), maPoly(seasonalCoeffs(m.SMA, sp)))

	psi := make([]float64, h)
	for j := 0; j < h; j++ {
		v := 0.0
		if j == 0 {
			v = 1
		} else {
			if j < len(theta) {
				v = theta[j]
			}
			for i := 1; i < len(full) && i <= j; i++ {
				v -= full[i] * psi[j-i]
			}
		}
		psi[j] = v
	}
	return psi
}

// splitParams slices the flat optimizer vector into the four coefficient
// blocks in AR, MA, SAR, SMA order.
func splitParams(x []float64, order domain.SARIMAOrder) (ar, ma, sar, sma []float64) {
	ar = x[:order.P]
	ma = x[order.P : order.P+order.Q]
	sar = x[order.P+order.Q : order.P+order.Q+order.SP]
	sma = x[order.P+order.Q+order.SP:]
	return ar, ma, sar, sma
}

// stationarityPenalty keeps the optimizer inside a crude invertibility box.
// Exact root checks are overkill for coefficients this small; bounding each
// one below 1 in absolute value is enough to keep the recursions stable.
func stationarityPenalty(blocks ...[]float64) float64 {
	penalty := 0.0
	for _, b := range blocks {
		for _, v := range b {
			if a := math.Abs(v); a >= 0.99 {
				penalty += a - 0.98
			}
		}
	}
	return penalty
}

// cssResiduals runs the ARMA residual recursion on an already differenced,
// de-meaned series, conditioning on the first maxLag observations.
func cssResiduals(w []float64, ar, ma, sar, sma []float64) (css float64, resid []float64) {
	arc := expandAR(ar, sar, seasonalPeriod)
	mac := expandMA(ma, sma, seasonalPeriod)
	maxLag := len(arc)

	e := make([]float64, len(w))
	for t := range w {
		v := w[t]
		for i, c := range arc {
			if idx := t - i - 1; idx >= 0 {
				v -= c * w[idx]
			}
		}
		for j, c := range mac {
			if idx := t - j - 1; idx >= 0 {
				v -= c * e[idx]
			}
		}
		e[t] = v
	}
	if maxLag >= len(e) {
		maxLag = 0
	}
	resid = e[maxLag:]
	for _, r := range resid {
		css += r * r
	}
	return css, resid
}

// expandAR multiplies the regular and seasonal AR polynomials and returns
// the lag coefficients c such that w_t = sum c_i w_{t-i} + noise.
func expandAR(ar, sar []float64, sp int) []float64 {
	full := polyMul(arPoly(ar), arPoly(seasonalCoeffs(sar, sp)))
	out := make([]float64, len(full)-1)
	for i := 1; i < len(full); i++ {
		out[i-1] = -full[i]
	}
	return out
}

// expandMA multiplies the regular and seasonal MA polynomials and returns
// the lag coefficients on past shocks.
func expandMA(ma, sma []float64, sp int) []float64 {
	full := polyMul(maPoly(ma), maPoly(seasonalCoeffs(sma, sp)))
	return full[1:]
}

// arPoly builds 1 - c1*B - c2*B^2 - ... as a coefficient slice indexed by
// power of the backshift operator.
func arPoly(coeffs []float64) []float64 {
	p := make([]float64, len(coeffs)+1)
	p[0] = 1
	for i, c := range coeffs {
		p[i+1] = -c
	}
	return p
}

// maPoly builds 1 + c1*B + c2*B^2 + ....
func maPoly(coeffs []float64) []float64 {
	p := make([]float64, len(coeffs)+1)
	p[0] = 1
	copy(p[1:], coeffs)
	return p
}

// seasonalCoeffs spreads seasonal coefficients onto multiples of the
// seasonal period, so a seasonal polynomial in B^m becomes an ordinary one
// in B.
func seasonalCoeffs(coeffs []float64, sp int) []float64 {
	if len(coeffs) == 0 {
		return nil
	}
	out := make([]float64, len(coeffs)*sp)
	for i, c := range coeffs {
		out[(i+1)*sp-1] = c
	}
	return out
}

// diffPoly builds (1-B^lag)^order.
func diffPoly(order, lag int) []float64 {
	p := []float64{1}
	step := make([]float64, lag+1)
	step[0] = 1
	step[lag] = -1
	for i := 0; i < order; i++ {
		p = polyMul(p, step)
	}
	return p
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

// difference applies D seasonal differences then d regular differences.
func difference(values []float64, d, sd, sp int) []float64 {
	w := append([]float64(nil), values...)
	for i := 0; i < sd; i++ {
		w = diffOnce(w, sp)
	}
	for i := 0; i < d; i++ {
		w = diffOnce(w, 1)
	}
	return w
}

func diffOnce(values []float64, lag int) []float64 {
	if len(values) <= lag {
		return nil
	}
	out := make([]float64, len(values)-lag)
	for i := range out {
		out[i] = values[i+lag] - values[i]
	}
	return out
}

// integrate inverts the differencing applied by difference: forecasts made
// on the differenced scale are cumulated back onto the level of the original
// series.
func integrate(original, future []float64, d, sd, sp int) []float64 {
	// Rebuild the ladder of partially differenced series so each layer has
	// the history needed to undo its own difference.
	layers := [][]float64{append([]float64(nil), original...)}
	for i := 0; i < sd; i++ {
		layers = append(layers, diffOnce(layers[len(layers)-1], sp))
	}
	for i := 0; i < d; i++ {
		layers = append(layers, diffOnce(layers[len(layers)-1], 1))
	}

	vals := append([]float64(nil), future...)
	// Undo regular differences first (they were applied last).
	for i := 0; i < d; i++ {
		parent := layers[len(layers)-2-i]
		prev := parent[len(parent)-1]
		for j := range vals {
			prev += vals[j]
			vals[j] = prev
		}
	}
	for i := 0; i < sd; i++ {
		parent := layers[sd-1-i]
		hist := append([]float64(nil), parent...)
		for j := range vals {
			vals[j] += hist[len(hist)-sp]
			hist = append(hist, vals[j])
		}
	}
	return vals
}
