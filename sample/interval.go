package sample

import (
	"fmt"
	"math"
)

// ConfidenceInterval is an estimate with lower and upper bounds.
type ConfidenceInterval struct {
	Min  float64
	Mean float64
	Max  float64
}

// Point returns the degenerate interval [v, v, v].
func Point(v float64) ConfidenceInterval {
	return ConfidenceInterval{Min: v, Mean: v, Max: v}
}

// Multiply scales all bounds by f.
func (c ConfidenceInterval) Multiply(f float64) ConfidenceInterval {
	return ConfidenceInterval{Min: c.Min * f, Mean: c.Mean * f, Max: c.Max * f}
}

// IsPoint reports whether the interval has zero width.
func (c ConfidenceInterval) IsPoint() bool {
	return c.Min == c.Max
}

// Width returns Max − Min.
func (c ConfidenceInterval) Width() float64 {
	return c.Max - c.Min
}

func (c ConfidenceInterval) String() string {
	if c.IsPoint() {
		return fmt.Sprintf("%.6f", c.Mean)
	}
	return fmt.Sprintf("[%.6f, %.6f, %.6f]", c.Min, c.Mean, c.Max)
}

var (
	probitA = [4]float64{2.50662823884, -18.61500062529, 41.39119773534, -25.44106049637}
	probitB = [4]float64{-8.47351093090, 23.08336743743, -21.06224101826, 3.13082909833}
	probitC = [9]float64{
		0.3374754822726147, 0.9761690190917186, 0.1607979714918209,
		0.0276438810333863, 0.0038405729373609, 0.0003951896511919,
		0.0000321767881768, 0.0000002888167364, 0.0000003960315187,
	}
)

// Probit is the inverse of the standard normal CDF (Beasley-Springer-Moro).
// Quantiles outside (0, 1) map to ±Inf.
func Probit(q float64) float64 {
	switch {
	case math.IsNaN(q):
		return math.NaN()
	case q <= 0:
		return math.Inf(-1)
	case q >= 1:
		return math.Inf(1)
	case q >= 0.5 && q <= 0.92:
		y := q - 0.5
		num, den := 0.0, 1.0
		for i := range probitA {
			num += probitA[i] * math.Pow(y, float64(2*i+1))
			den += probitB[i] * math.Pow(y, float64(2*i+2))
		}
		return num / den
	case q > 0.92 && q < 1:
		r := math.Log(-math.Log(1 - q))
		v := 0.0
		for i := range probitC {
			v += probitC[i] * math.Pow(r, float64(i))
		}
		return v
	default:
		return -Probit(1 - q)
	}
}
