// Package config loads the service configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/meloscan/internal/fusion"
	"github.com/Brownie44l1/meloscan/internal/preprocess"
	"github.com/Brownie44l1/meloscan/internal/vision"
)

// Default values. New is the only place they are applied.
const (
	DefaultFile = "meloscan.yaml"

	DefaultPort           = 8080
	DefaultMaxUploadMB    = 10
	DefaultRequestTimeout = 30

	DefaultModelPath    = "models/model.onnx"
	DefaultMetadataPath = "models/model_metadata.json"

	DefaultVisionBackend = vision.BackendNative

	DefaultRemoteTimeout = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port                  int `yaml:"port,omitempty"`
	MaxUploadMB           int `yaml:"max_upload_mb,omitempty"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds,omitempty"`
}

// AzureBlobConfig locates the model artifact in Azure Blob Storage.
type AzureBlobConfig struct {
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
	Blob       string `yaml:"blob,omitempty"`
}

// ModelConfig locates the model and the ONNX Runtime library.
type ModelConfig struct {
	Path           string          `yaml:"path,omitempty"`
	MetadataPath   string          `yaml:"metadata_path,omitempty"`
	LibraryPath    string          `yaml:"library_path,omitempty"`
	InputName      string          `yaml:"input_name,omitempty"`
	OutputName     string          `yaml:"output_name,omitempty"`
	IntraOpThreads int             `yaml:"intra_op_threads,omitempty"`
	AzureBlob      AzureBlobConfig `yaml:"azure_blob,omitempty"`
}

// VisionConfig selects the vision backend and bounds the images it sees.
type VisionConfig struct {
	Backend         string `yaml:"backend,omitempty"`
	AnalysisMaxSide int    `yaml:"analysis_max_side,omitempty"`
	MaxPixels       int    `yaml:"max_pixels,omitempty"`
}

// ClassifierConfig holds decision settings.
type ClassifierConfig struct {
	ValidityThreshold *float64 `yaml:"validity_threshold,omitempty"`
}

// RemoteConfig points at the model-management service.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Model      ModelConfig      `yaml:"model,omitempty"`
	Vision     VisionConfig     `yaml:"vision,omitempty"`
	Classifier ClassifierConfig `yaml:"classifier,omitempty"`
	Remote     RemoteConfig     `yaml:"remote,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
}

// New returns a Config with every default populated.
func New() *Config {
	threshold := fusion.DefaultValidityThreshold
	return &Config{
		Server: ServerConfig{
			Port:                  DefaultPort,
			MaxUploadMB:           DefaultMaxUploadMB,
			RequestTimeoutSeconds: DefaultRequestTimeout,
		},
		Model: ModelConfig{
			Path:         DefaultModelPath,
			MetadataPath: DefaultMetadataPath,
		},
		Vision: VisionConfig{
			Backend:   DefaultVisionBackend,
			MaxPixels: preprocess.DefaultMaxPixels,
		},
		Classifier: ClassifierConfig{
			ValidityThreshold: &threshold,
		},
		Remote: RemoteConfig{
			TimeoutSeconds: DefaultRemoteTimeout,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads path over the defaults and then applies environment
// overrides. A missing file is not an error when path is DefaultFile.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		mergeConfig(cfg, &fileCfg)
	case errors.Is(err, os.ErrNotExist) && path == DefaultFile:
	default:
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Threshold is the configured validity threshold.
func (c *Config) Threshold() float64 {
	if c.Classifier.ValidityThreshold == nil {
		return fusion.DefaultValidityThreshold
	}
	return *c.Classifier.ValidityThreshold
}

// SetThreshold replaces the validity threshold.
func (c *Config) SetThreshold(v float64) {
	c.Classifier.ValidityThreshold = &v
}

// RequestTimeout is the per-request deadline for the HTTP API.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// RemoteTimeout bounds every call to the model-management service.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// MaxUploadBytes is the largest accepted multipart body.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout_seconds must not be negative"))
	}
	if c.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.Model.IntraOpThreads < 0 {
		errs = append(errs, fmt.Errorf("model.intra_op_threads must not be negative"))
	}
	switch c.Vision.Backend {
	case vision.BackendNative, vision.BackendOpenCV:
	default:
		errs = append(errs, fmt.Errorf("vision.backend must be %q or %q, got %q",
			vision.BackendNative, vision.BackendOpenCV, c.Vision.Backend))
	}
	if c.Vision.AnalysisMaxSide < 0 {
		errs = append(errs, fmt.Errorf("vision.analysis_max_side must not be negative"))
	}
	if c.Vision.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("vision.max_pixels must be positive, got %d", c.Vision.MaxPixels))
	}
	if t := c.Threshold(); !(t >= 0 && t <= 1) {
		errs = append(errs, fmt.Errorf("classifier.validity_threshold must be in [0,1], got %g", t))
	}
	if c.Remote.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("remote.timeout_seconds must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// applyEnv overlays the supported environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := get("MODEL_PATH"); ok {
		c.Model.Path = v
	}
	if v, ok := get("MODEL_METADATA_PATH"); ok {
		c.Model.MetadataPath = v
	}
	if v, ok := get("ONNXRUNTIME_LIB"); ok {
		c.Model.LibraryPath = v
	}
	if v, ok := get("VISION_BACKEND"); ok {
		c.Vision.Backend = v
	}
	if v, ok := get("VALIDITY_THRESHOLD"); ok {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VALIDITY_THRESHOLD: %w", err)
		}
		c.SetThreshold(threshold)
	}
	if v, ok := get("REMOTE_URL"); ok {
		c.Remote.BaseURL = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.MaxUploadMB != 0 {
		dst.Server.MaxUploadMB = src.Server.MaxUploadMB
	}
	if src.Server.RequestTimeoutSeconds != 0 {
		dst.Server.RequestTimeoutSeconds = src.Server.RequestTimeoutSeconds
	}

	// Model
	if src.Model.Path != "" {
		dst.Model.Path = src.Model.Path
	}
	if src.Model.MetadataPath != "" {
		dst.Model.MetadataPath = src.Model.MetadataPath
	}
	if src.Model.LibraryPath != "" {
		dst.Model.LibraryPath = src.Model.LibraryPath
	}
	if src.Model.InputName != "" {
		dst.Model.InputName = src.Model.InputName
	}
	if src.Model.OutputName != "" {
		dst.Model.OutputName = src.Model.OutputName
	}
	if src.Model.IntraOpThreads != 0 {
		dst.Model.IntraOpThreads = src.Model.IntraOpThreads
	}
	if src.Model.AzureBlob.AccountURL != "" {
		dst.Model.AzureBlob.AccountURL = src.Model.AzureBlob.AccountURL
	}
	if src.Model.AzureBlob.Container != "" {
		dst.Model.AzureBlob.Container = src.Model.AzureBlob.Container
	}
	if src.Model.AzureBlob.Blob != "" {
		dst.Model.AzureBlob.Blob = src.Model.AzureBlob.Blob
	}

	// Vision
	if src.Vision.Backend != "" {
		dst.Vision.Backend = src.Vision.Backend
	}
	if src.Vision.AnalysisMaxSide != 0 {
		dst.Vision.AnalysisMaxSide = src.Vision.AnalysisMaxSide
	}
	if src.Vision.MaxPixels != 0 {
		dst.Vision.MaxPixels = src.Vision.MaxPixels
	}

	// Classifier
	if src.Classifier.ValidityThreshold != nil {
		dst.Classifier.ValidityThreshold = src.Classifier.ValidityThreshold
	}

	// Remote
	if src.Remote.BaseURL != "" {
		dst.Remote.BaseURL = src.Remote.BaseURL
	}
	if src.Remote.TimeoutSeconds != 0 {
		dst.Remote.TimeoutSeconds = src.Remote.TimeoutSeconds
	}

	// Log
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
}
