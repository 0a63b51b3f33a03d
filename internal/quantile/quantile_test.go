package quantile

import (
	"math"
	"math/rand"
	"testing"
)

func TestComputeQuantileBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		q      float64
		want   float64
		tol    float64
	}{
		{"median", []float64{1, 2, 3, 4}, 0.5, 2.5, 1e-9},
		{"min", []float64{1, 2, 3, 4}, 0.0, 1.0, 1e-9},
		{"near-max", []float64{1, 2, 3, 4}, 0.999, 4.0, 0.01},
		{"single", []float64{42}, 0.2, 42.0, 1e-9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeQuantile(tc.values, tc.q)
			if math.Abs(got-tc.want) > tc.tol {
				t.Fatalf("ComputeQuantile(%v, %v) = %v, want %v", tc.values, tc.q, got, tc.want)
			}
		})
	}
}

func TestComputeQuantileEmpty(t *testing.T) {
	got := ComputeQuantile(nil, 0.5)
	if !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf for empty input, got %v", got)
	}
}

func TestP2ExactBeforeInit(t *testing.T) {
	p := NewP2(0.5)
	for _, x := range []float64{1, 2, 3} {
		p.Update(x)
	}
	if p.Initialized() {
		t.Fatalf("expected uninitialized estimator before 5 samples")
	}
	got := p.Value()
	if math.IsNaN(got) {
		t.Fatalf("expected interpolated value, got NaN")
	}
}

func TestP2ConvergesOnGaussian(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := NewP2(0.995)
	for i := 0; i < 100000; i++ {
		p.Update(rng.NormFloat64())
	}
	got := p.Value()
	if got < 2.47 || got > 2.67 {
		t.Fatalf("P2 q=0.995 over N(0,1) = %v, want in [2.47, 2.67]", got)
	}
}

func TestP2MonotoneInQ(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	p1 := NewP2(0.5)
	p2 := NewP2(0.9)
	for i := 0; i < 5000; i++ {
		x := rng.NormFloat64()
		p1.Update(x)
		p2.Update(x)
	}
	if p2.Value() < p1.Value()-1e-6 {
		t.Fatalf("expected value(q=0.9) >= value(q=0.5) - eps, got %v < %v", p2.Value(), p1.Value())
	}
}

func TestP2TracksMeanShift(t *testing.T) {
	p := NewP2(0.5)
	for i := 0; i < 200; i++ {
		p.Update(0)
	}
	before := p.Value()
	for i := 0; i < 2000; i++ {
		p.Update(100)
	}
	after := p.Value()
	if after <= before {
		t.Fatalf("expected estimator to track an upward mean shift, got before=%v after=%v", before, after)
	}
}
