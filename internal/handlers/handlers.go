package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Brownie44l1/meloscan/internal/classifier"
	"github.com/Brownie44l1/meloscan/internal/model"
	"github.com/Brownie44l1/meloscan/internal/preprocess"
)

// DefaultMaxUpload is the multipart limit when none is configured.
const DefaultMaxUpload = 10 << 20

// formMemory is how much of an upload is kept in memory; the rest spills
// to temporary files.
const formMemory = 4 << 20

// Upload field names accepted by the predict endpoints.
var uploadFields = []string{"file", "image"}

// Classifier classifies one encoded image.
type Classifier interface {
	Classify(ctx context.Context, r io.Reader) (*classifier.Result, error)
}

// ModelStatus reports the loaded model's class order, or why it is not loaded.
type ModelStatus func() ([]string, error)

type Handler struct {
	classifier Classifier
	status     ModelStatus
	maxUpload  int64
	logger     *slog.Logger
}

func NewHandler(c Classifier, status ModelStatus, maxUpload int64, logger *slog.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		classifier: c,
		status:     status,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

type healthResponse struct {
	Status      string   `json:"status"`
	ModelLoaded bool     `json:"model_loaded"`
	Classes     []string `json:"classes,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type predictResponse struct {
	*classifier.Result
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	classes, err := h.status()
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.ModelLoaded = true
		resp.Classes = classes
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := RequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(min(h.maxUpload, formMemory)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit", err)
			return
		}
		h.fail(w, r, http.StatusBadRequest, "Failed to parse form", err)
		return
	}
	form := r.MultipartForm

	file, header, err := formFile(r)
	if err != nil {
		_ = form.RemoveAll()
		h.fail(w, r, http.StatusBadRequest, "No image file provided. Use 'file' or 'image' as the form field name", err)
		return
	}
	r.MultipartForm = nil

	h.logger.Debug("received upload",
		"request_id", id,
		"filename", header.Filename,
		"size", header.Size)

	result, err := h.classify(r.Context(), file, form)
	if err != nil {
		status, msg := classifyError(err)
		h.fail(w, r, status, msg, err)
		return
	}

	h.logger.Info("prediction",
		"request_id", id,
		"class", result.PredictedClass,
		"confidence", result.Confidence,
		"degraded", result.DegradedFamilies(),
		"elapsed", time.Since(start))

	writeJSON(w, http.StatusOK, predictResponse{Result: result, RequestID: id})
}

// classify runs the pipeline but stops waiting once ctx is done. The
// pipeline itself is not interruptible; a late result is dropped. The
// pipeline goroutine owns the upload and removes it when it finishes.
func (h *Handler) classify(ctx context.Context, file multipart.File, form *multipart.Form) (*classifier.Result, error) {
	type outcome struct {
		result *classifier.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			_ = file.Close()
			_ = form.RemoveAll()
		}()
		result, err := h.classifier.Classify(ctx, file)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var err error
	for _, field := range uploadFields {
		file, header, ferr := r.FormFile(field)
		if ferr == nil {
			return file, header, nil
		}
		err = ferr
	}
	return nil, nil, err
}

// classifyError maps a pipeline error to a status and a client message.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, preprocess.ErrImageDecode):
		return http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG, GIF, BMP, TIFF, WebP"
	case errors.Is(err, model.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "Model not loaded"
	case errors.Is(err, model.ErrInferenceShape):
		return http.StatusInternalServerError, "Model returned an unexpected output shape"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Prediction timed out"
	default:
		return http.StatusInternalServerError, "Prediction failed"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	id := RequestID(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"request_id", id,
		"path", r.URL.Path,
		"status", status,
		"error", err)
	writeJSON(w, status, errorResponse{Detail: msg, RequestID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
