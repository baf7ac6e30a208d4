package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/Brownie44l1/aidetect-api/internal/imaging"
)

// Backend runs a forward pass and returns raw logits. *Session implements it.
type Backend interface {
	Infer(t *imaging.Tensor) ([]float32, error)
}

// Predictor turns logits into a labelled, normalized Prediction.
type Predictor struct {
	backend Backend
	labels  []Label
}

func NewPredictor(backend Backend) *Predictor {
	return &Predictor{backend: backend, labels: Labels}
}

// Predict runs one forward pass. Any failure is an *InferenceError.
func (p *Predictor) Predict(t *imaging.Tensor) (Prediction, error) {
	logits, err := p.backend.Infer(t)
	if err != nil {
		var infErr *InferenceError
		if errors.As(err, &infErr) {
			return Prediction{}, err
		}
		return Prediction{}, &InferenceError{Err: err}
	}

	if len(logits) != len(p.labels) {
		return Prediction{}, &InferenceError{
			Err: fmt.Errorf("%w: got %d logits for %d classes", ErrShapeMismatch, len(logits), len(p.labels)),
		}
	}
	for i, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return Prediction{}, &InferenceError{Err: fmt.Errorf("non-finite logit %v at index %d", v, i)}
		}
	}

	probs := Softmax(logits)
	best := argmax(probs)

	byLabel := make(map[Label]float64, len(probs))
	for i, pr := range probs {
		byLabel[p.labels[i]] = pr
	}

	return Prediction{
		Class:         p.labels[best],
		Probability:   probs[best],
		Probabilities: byLabel,
	}, nil
}

// Softmax normalizes logits into probabilities summing to 1.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > peak {
			peak = float64(v)
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
