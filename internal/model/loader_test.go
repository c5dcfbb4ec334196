package model

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderReportsNotLoadedAndCachesFailure(t *testing.T) {
	l := NewLoader(LoadOptions{
		ModelPath:    filepath.Join(t.TempDir(), "model.onnx"),
		MetadataPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	defer l.Close()

	e, err := l.Engine()
	assert.Nil(t, e)
	require.ErrorIs(t, err, ErrModelNotLoaded)

	_, again := l.Engine()
	assert.Same(t, err, again)

	_, err = l.Predict(context.Background(), make([]float32, 224*224*3))
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestLoaderCloseWaitsForInFlightPredictions(t *testing.T) {
	var torn atomic.Int32
	l := NewLoader(LoadOptions{})
	l.loaded = true
	l.engine = newEngine(&ortRunner{onDestroy: func() { torn.Add(1) }}, DefaultMetadata(), CanonicalOrder)

	inFlight, err := l.engine.Retain()
	require.NoError(t, err)

	l.Close()
	assert.Equal(t, int32(0), torn.Load())

	_, err = l.Engine()
	require.ErrorIs(t, err, ErrModelNotLoaded)
	assert.Contains(t, err.Error(), "loader closed")

	inFlight.Release()
	assert.Equal(t, int32(1), torn.Load())

	l.Close()
	assert.Equal(t, int32(1), torn.Load())
}

func TestLoaderConcurrentEngineAndClose(t *testing.T) {
	l := NewLoader(LoadOptions{
		ModelPath:    filepath.Join(t.TempDir(), "model.onnx"),
		MetadataPath: filepath.Join(t.TempDir(), "missing.json"),
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Engine()
			assert.ErrorIs(t, err, ErrModelNotLoaded)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Close()
	}()
	wg.Wait()

	_, err := l.Engine()
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestLoaderRejectsBadClassOverride(t *testing.T) {
	l := NewLoader(LoadOptions{
		ModelPath:  filepath.Join(t.TempDir(), "model.onnx"),
		ClassNames: []string{"ripe", "unripe"},
	})
	defer l.Close()

	_, err := l.Engine()
	require.ErrorIs(t, err, ErrModelNotLoaded)
	assert.Contains(t, err.Error(), "class name override")
}

func TestFetchArtifactKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))

	require.NoError(t, FetchArtifact(context.Background(), path, BlobSource{}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "onnx", string(data))
}

func TestFetchArtifactWithoutSource(t *testing.T) {
	err := FetchArtifact(context.Background(), filepath.Join(t.TempDir(), "model.onnx"), BlobSource{Container: "models"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no blob source configured")
}
