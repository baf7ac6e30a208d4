package model

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is wrapped when a tensor or logit vector does not have
// the shape the network was exported with.
var ErrShapeMismatch = errors.New("shape mismatch")

// LoadError means the network could not be made ready. The service must not
// start serving after one.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InferenceError is a failed forward pass.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "inference failed: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error { return e.Err }
