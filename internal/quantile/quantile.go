// Package quantile implements streaming quantile estimation.
//
// P2 is the Jain-Chlamtac (1985) P² algorithm: five markers track a single
// target quantile in O(1) memory and O(1) per-sample update, with an exact
// fallback while fewer than five samples have been observed. ComputeQuantile
// is the fixed-window alternative: linear interpolation over a sorted
// snapshot of recent values.
package quantile

import (
	"math"
	"sort"
)

// P2 estimates a single streaming quantile using the P² algorithm.
// The zero value is not usable; construct with NewP2.
type P2 struct {
	q           float64
	n           int
	initialized bool
	heights     [5]float64
	positions   [5]int
	desired     [5]float64
	incs        [5]float64
	buffer      []float64
}

// NewP2 constructs an estimator for the given target quantile, which must
// lie in (0, 1).
func NewP2(q float64) *P2 {
	return &P2{q: q, buffer: make([]float64, 0, 5)}
}

// Q returns the target quantile this estimator tracks.
func (p *P2) Q() float64 { return p.q }

// Update observes one sample.
func (p *P2) Update(x float64) {
	if !p.initialized {
		p.buffer = append(p.buffer, x)
		if len(p.buffer) == 5 {
			sort.Float64s(p.buffer)
			copy(p.heights[:], p.buffer)
			p.positions = [5]int{1, 2, 3, 4, 5}
			q := p.q
			p.desired = [5]float64{1, 1 + 2*q, 1 + 4*q, 3 + 2*q, 5}
			p.incs = [5]float64{0, q / 2, q, (1 + q) / 2, 1}
			p.initialized = true
		}
		return
	}

	p.n++
	h := &p.heights
	n := &p.positions
	nd := &p.desired
	dn := &p.incs

	var k int
	switch {
	case x < h[0]:
		h[0] = x
		k = 0
	case x >= h[4]:
		h[4] = x
		k = 3
	default:
		k = 0
		for k < 4 && x >= h[k+1] {
			k++
		}
	}
	for i := k + 1; i < 5; i++ {
		n[i]++
	}
	for i := 0; i < 5; i++ {
		nd[i] += dn[i]
	}

	for i := 1; i < 4; i++ {
		d := nd[i] - float64(n[i])
		if (d >= 1 && n[i+1]-n[i] > 1) || (d <= -1 && n[i-1]-n[i] < -1) {
			dSign := 1
			if d < 0 {
				dSign = -1
			}
			hp := parabolic(i, dSign, h, n)
			if h[i-1] < hp && hp < h[i+1] {
				h[i] = hp
			} else {
				h[i] = linear(i, dSign, h, n)
			}
			n[i] += dSign
		}
	}
}

// parabolic computes the parabolic prediction for interior marker i, guarding
// against division by zero in degenerate (equal-position) marker states.
func parabolic(i, d int, h *[5]float64, n *[5]int) float64 {
	n0, n1, n2 := float64(n[i-1]), float64(n[i]), float64(n[i+1])
	h0, h1, h2 := h[i-1], h[i], h[i+1]
	fd := float64(d)
	if n2-n0 == 0 || n2-n1 == 0 || n1-n0 == 0 {
		return math.Inf(1) // forces the linear fallback at the call site
	}
	return h1 + fd/(n2-n0)*((n1-n0+fd)*(h2-h1)/(n2-n1)+(n2-n1-fd)*(h1-h0)/(n1-n0))
}

func linear(i, d int, h *[5]float64, n *[5]int) float64 {
	denom := float64(n[i+d] - n[i])
	if denom == 0 {
		return h[i]
	}
	return h[i] + float64(d)*(h[i+d]-h[i])/denom
}

// Value returns the current quantile estimate. Before the fifth sample it is
// a linear interpolation over the buffered samples; NaN on an empty
// estimator.
func (p *P2) Value() float64 {
	if !p.initialized {
		if len(p.buffer) == 0 {
			return math.NaN()
		}
		data := append([]float64(nil), p.buffer...)
		sort.Float64s(data)
		if len(data) == 1 {
			return data[0]
		}
		idx := p.q * float64(len(data)-1)
		lo := int(idx)
		hi := lo + 1
		if hi > len(data)-1 {
			hi = len(data) - 1
		}
		frac := idx - float64(lo)
		return data[lo] + (data[hi]-data[lo])*frac
	}
	return p.heights[2]
}

// Samples returns the number of samples observed after initialization (does
// not count the five used to seed the markers).
func (p *P2) Samples() int { return p.n }

// Initialized reports whether the fifth sample has arrived and the markers
// are live.
func (p *P2) Initialized() bool { return p.initialized }

// ComputeQuantile is the fixed-window fallback: sort values and linearly
// interpolate at position q*(len-1). Returns +Inf for an empty slice,
// matching the "no data yet" sentinel used by the alerting pipeline.
func ComputeQuantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.Inf(1)
	}
	data := append([]float64(nil), values...)
	sort.Float64s(data)
	if len(data) == 1 {
		return data[0]
	}
	position := q * float64(len(data)-1)
	lower := math.Floor(position)
	upper := math.Ceil(position)
	if lower == upper {
		return data[int(lower)]
	}
	fraction := position - lower
	return data[int(lower)] + (data[int(upper)]-data[int(lower)])*fraction
}
