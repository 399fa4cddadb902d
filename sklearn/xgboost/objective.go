package xgboost

import "math"

// Binary logistic objective ("binary:logistic").

const (
	minHessian = 1e-16
	probEps    = 1e-15
)

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// gradHess returns the first and second derivative of the log loss with
// respect to the margin. Positive rows are weighted by scalePosWeight.
func gradHess(margin, label, scalePosWeight float64) (float64, float64) {
	p := sigmoid(margin)
	g := p - label
	h := math.Max(p*(1-p), minHessian)
	if label == 1 {
		g *= scalePosWeight
		h *= scalePosWeight
	}
	return g, h
}

// logLoss is the mean binary cross-entropy of margins against labels.
func logLoss(margins, labels []float64) float64 {
	if len(margins) == 0 {
		return 0
	}
	var sum float64
	for i, m := range margins {
		p := math.Min(math.Max(sigmoid(m), probEps), 1-probEps)
		if labels[i] == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(margins))
}

// thresholdL1 is the soft-threshold T(g) applied by reg_alpha.
func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}
