package charts

import (
	"errors"
	"math"
)

// ErrNotIncreasing is returned when interpolation knots are not strictly
// increasing.
var ErrNotIncreasing = errors.New("x values must be strictly increasing")

// PCHIP evaluates a monotone cubic interpolant (piecewise cubic Hermite,
// Fritsch-Carlson slopes) through the knots (x, y) at the points xNew.
// Monotone data never overshoots between knots, which keeps smoothed trend
// lines inside the plotted value range.
func PCHIP(x, y, xNew []float64) ([]float64, error) {
	n := len(x)
	if n != len(y) {
		return nil, errors.New("x and y must have the same length")
	}
	out := make([]float64, len(xNew))
	if n == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}
	if n == 1 {
		for i := range out {
			out[i] = y[0]
		}
		return out, nil
	}
	for i := 1; i < n; i++ {
		if x[i] <= x[i-1] {
			return nil, ErrNotIncreasing
		}
	}

	h := make([]float64, n-1)
	delta := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = x[i+1] - x[i]
		delta[i] = (y[i+1] - y[i]) / h[i]
	}

	d := make([]float64, n)
	if n == 2 {
		d[0], d[1] = delta[0], delta[0]
	} else {
		for i := 1; i < n-1; i++ {
			if delta[i-1] == 0 || delta[i] == 0 || sign(delta[i-1]) != sign(delta[i]) {
				d[i] = 0
				continue
			}
			w1 := 2*h[i] + h[i-1]
			w2 := h[i] + 2*h[i-1]
			d[i] = (w1 + w2) / (w1/delta[i-1] + w2/delta[i])
		}
		d[0] = endpointSlope(h[0], h[1], delta[0], delta[1])
		d[n-1] = endpointSlope(h[n-2], h[n-3], delta[n-2], delta[n-3])
	}

	for i, xi := range xNew {
		k := searchSegment(x, xi)
		t := (xi - x[k]) / h[k]
		t2 := t * t
		t3 := t2 * t
		h00 := 2*t3 - 3*t2 + 1
		h10 := t3 - 2*t2 + t
		h01 := -2*t3 + 3*t2
		h11 := t3 - t2
		out[i] = h00*y[k] + h10*h[k]*d[k] + h01*y[k+1] + h11*h[k]*d[k+1]
	}
	return out, nil
}

// endpointSlope is the one-sided three-point estimate with the standard
// Fritsch-Carlson limiting at the boundary.
func endpointSlope(h0, h1, delta0, delta1 float64) float64 {
	d := ((2*h0+h1)*delta0 - h0*delta1) / (h0 + h1)
	switch {
	case sign(d) != sign(delta0):
		return 0
	case sign(delta0) != sign(delta1) && math.Abs(d) > math.Abs(3*delta0):
		return 3 * delta0
	}
	return d
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// searchSegment returns the knot interval index containing xi, clamped to
// the valid range so evaluation extrapolates from the end segments.
func searchSegment(x []float64, xi float64) int {
	lo, hi := 0, len(x)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if x[mid] <= xi {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
