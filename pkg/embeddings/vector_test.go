package embeddings

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	t.Run("unit vector unchanged", func(t *testing.T) {
		v := []float32{1, 0, 0}
		NormalizeL2(v)

		if v[0] != 1 || v[1] != 0 || v[2] != 0 {
			t.Errorf("unit vector changed: got %v", v)
		}
	})

	t.Run("normalizes to unit length", func(t *testing.T) {
		vec := []float32{3, 4}
		NormalizeL2(vec)

		const tol = 1e-5
		if math.Abs(float64(vec[0])-0.6) > tol || math.Abs(float64(vec[1])-0.8) > tol {
			t.Errorf("expected (0.6, 0.8), got (%f, %f)", vec[0], vec[1])
		}
	})

	t.Run("zero vector does not panic", func(t *testing.T) {
		v := []float32{0, 0, 0}
		NormalizeL2(v)

		if v[0] != 0 || v[1] != 0 || v[2] != 0 {
			t.Errorf("zero vector should remain unchanged: got %v", v)
		}
	})
}

func TestUnitFloat64(t *testing.T) {
	t.Run("does not modify input", func(t *testing.T) {
		in := []float32{3, 4}
		out := UnitFloat64(nil, in)

		if in[0] != 3 || in[1] != 4 {
			t.Errorf("input modified: %v", in)
		}

		const tol = 1e-9
		if math.Abs(out[0]-0.6) > tol || math.Abs(out[1]-0.8) > tol {
			t.Errorf("expected (0.6, 0.8), got %v", out)
		}
	})

	t.Run("reuses dst when large enough", func(t *testing.T) {
		dst := make([]float64, 4)
		out := UnitFloat64(dst, []float32{0, 2})

		if &out[0] != &dst[0] {
			t.Error("expected dst to be reused")
		}

		if len(out) != 2 || out[1] != 1 {
			t.Errorf("got %v", out)
		}
	})

	t.Run("zero vector yields zeros", func(t *testing.T) {
		out := UnitFloat64(nil, []float32{0, 0, 0})
		for i, v := range out {
			if v != 0 {
				t.Errorf("component %d = %f, want 0", i, v)
			}
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		vec     []float32
		wantErr error
	}{
		{"ok", []float32{0.1, -0.2}, nil},
		{"empty", nil, ErrEmptyVector},
		{"nan", []float32{0.1, float32(math.NaN())}, ErrNonFinite},
		{"inf", []float32{float32(math.Inf(1))}, ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.vec)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); math.Abs(got-5) > 1e-9 {
		t.Errorf("Norm = %f, want 5", got)
	}
}
