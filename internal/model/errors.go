package model

import "errors"

var (
	// ErrModelNotLoaded is returned when no usable model is available.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrInferenceShape is returned when the model output is not a single row of class scores.
	ErrInferenceShape = errors.New("unexpected inference output shape")
)
