package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// runner executes one forward pass. It returns the raw output row and its shape.
type runner interface {
	run(input []float32) ([]float32, []int64, error)
	destroy()
}

// Engine is a loaded classifier. It is read-only after construction and
// safe for concurrent Predict calls. The owner holds one reference; Retain
// hands out more and the session is destroyed when the last one is released.
type Engine struct {
	runner   runner
	Metadata Metadata
	order    ClassOrder

	mu     sync.Mutex
	refs   int
	closed bool
}

func newEngine(r runner, md Metadata, order ClassOrder) *Engine {
	return &Engine{
		runner:   r,
		Metadata: md,
		order:    order,
		refs:     1,
	}
}

// Retain adds a reference. Callers must pair it with Release.
func (e *Engine) Retain() (*Engine, error) {
	if !e.acquire() {
		return nil, ErrModelNotLoaded
	}
	return e, nil
}

// Release drops a reference taken with Retain. Extra calls are no-ops.
func (e *Engine) Release() {
	e.mu.Lock()
	if e.refs <= 0 {
		e.mu.Unlock()
		return
	}
	e.refs--
	last := e.refs == 0
	e.mu.Unlock()

	if last {
		e.runner.destroy()
	}
}

// Close drops the owner's reference. In-flight predictions finish first.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.Release()
}

// Classes returns the labels in the model's raw output order.
func (e *Engine) Classes() []string {
	return e.order.Strings()
}

// Predict runs one forward pass on a preprocessed NHWC tensor and returns
// the scores in canonical class order.
func (e *Engine) Predict(_ context.Context, input []float32) (ScoreVector, error) {
	if !e.acquire() {
		return ScoreVector{}, ErrModelNotLoaded
	}
	defer e.Release()

	expected := 1
	for _, d := range e.Metadata.InputShape {
		expected *= int(d)
	}
	if len(input) != expected {
		return ScoreVector{}, fmt.Errorf("expected %d input values, got %d", expected, len(input))
	}

	raw, shape, err := e.runner.run(input)
	if err != nil {
		return ScoreVector{}, fmt.Errorf("inference failed: %w", err)
	}
	if err := CheckOutputShape(shape); err != nil {
		return ScoreVector{}, err
	}
	if len(raw) != NumClasses {
		return ScoreVector{}, fmt.Errorf("%w: got %d values", ErrInferenceShape, len(raw))
	}
	return e.order.Remap(raw), nil
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.refs <= 0 {
		return false
	}
	e.refs++
	return true
}

// ortRunner runs an ONNX Runtime session. Tensors are allocated per call
// and destroyed before returning. onDestroy runs after the session is
// destroyed.
type ortRunner struct {
	session    *ort.DynamicAdvancedSession
	inputShape ort.Shape
	onDestroy  func()
}

func newORTRunner(modelPath string, md Metadata, intraOpThreads int) (*ortRunner, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if intraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(intraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{md.InputName}, []string{md.OutputName}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortRunner{
		session:    session,
		inputShape: ort.NewShape(md.InputShape...),
	}, nil
}

func (r *ortRunner) run(input []float32) ([]float32, []int64, error) {
	inputTensor, err := ort.NewTensor(r.inputShape, input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.ArbitraryTensor{nil}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	if err := r.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs); err != nil {
		return nil, nil, err
	}

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("%w: output is not a float32 tensor", ErrInferenceShape)
	}

	// The tensor is destroyed on return, so copy out of native memory.
	data := append([]float32(nil), tensor.GetData()...)
	return data, []int64(tensor.GetShape()), nil
}

func (r *ortRunner) destroy() {
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	if r.onDestroy != nil {
		r.onDestroy()
		r.onDestroy = nil
	}
}
