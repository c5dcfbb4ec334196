package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LoadOptions locates the model artifact and the ONNX Runtime library.
type LoadOptions struct {
	ModelPath      string
	MetadataPath   string
	LibraryPath    string
	IntraOpThreads int

	// InputName and OutputName override the tensor names from the metadata.
	InputName  string
	OutputName string

	// ClassNames overrides the output order from the metadata, e.g. with
	// the order published by the model-management service.
	ClassNames []string

	Logger *slog.Logger
}

// Loader loads the engine at most once and hands out the shared instance.
type Loader struct {
	opts LoadOptions

	mu     sync.Mutex
	loaded bool
	closed bool
	engine *Engine
	err    error
}

// NewLoader returns a loader. Nothing is loaded until Engine is called.
func NewLoader(opts LoadOptions) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{opts: opts}
}

// Engine loads the model on first use. Every failure wraps ErrModelNotLoaded
// and is returned again on later calls.
func (l *Loader) Engine() (*Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("%w: loader closed", ErrModelNotLoaded)
	}
	if !l.loaded {
		l.loaded = true
		l.engine, l.err = l.load()
		if l.err != nil {
			l.err = fmt.Errorf("%w: %w", ErrModelNotLoaded, l.err)
		}
	}
	return l.engine, l.err
}

// Predict loads the engine if needed and runs one forward pass.
func (l *Loader) Predict(ctx context.Context, input []float32) (ScoreVector, error) {
	e, err := l.Engine()
	if err != nil {
		return ScoreVector{}, err
	}
	return e.Predict(ctx, input)
}

// Close drops the owner's engine reference. The session and the ONNX
// Runtime environment are destroyed once the last in-flight prediction
// releases the engine. Engine fails with ErrModelNotLoaded afterwards.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	e := l.engine
	l.mu.Unlock()

	if e != nil {
		e.Close()
	}
}

func (l *Loader) load() (*Engine, error) {
	md := DefaultMetadata()
	if l.opts.MetadataPath != "" {
		var err error
		md, err = LoadMetadata(l.opts.MetadataPath)
		if err != nil {
			return nil, err
		}
	}

	if l.opts.InputName != "" {
		md.InputName = l.opts.InputName
	}
	if l.opts.OutputName != "" {
		md.OutputName = l.opts.OutputName
	}

	order, err := md.Order()
	if err != nil {
		return nil, err
	}
	if len(l.opts.ClassNames) > 0 {
		order, err = ParseClassOrder(l.opts.ClassNames)
		if err != nil {
			return nil, fmt.Errorf("class name override: %w", err)
		}
	}

	if l.opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(l.opts.LibraryPath)
	}
	var teardown func()
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		teardown = l.destroyEnvironment
	}

	r, err := newORTRunner(l.opts.ModelPath, md, l.opts.IntraOpThreads)
	if err != nil {
		if teardown != nil {
			teardown()
		}
		return nil, err
	}
	r.onDestroy = teardown

	l.opts.Logger.Info("model loaded",
		"path", l.opts.ModelPath,
		"input", md.InputShape,
		"output", md.OutputShape,
		"classes", order.Strings())

	return newEngine(r, md, order), nil
}

func (l *Loader) destroyEnvironment() {
	if err := ort.DestroyEnvironment(); err != nil {
		l.opts.Logger.Warn("failed to destroy ONNX environment", "error", err)
	}
}
