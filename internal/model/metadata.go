package model

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// InputSize is the square edge the classifier expects.
const InputSize = 224

const (
	defaultInputName  = "input"
	defaultOutputName = "output"
)

//go:embed metadata.schema.json
var metadataSchemaJSON string

var (
	metadataSchema = mustCompileSchema(metadataSchemaJSON, "metadata.schema.json")
	schemaPrinter  = message.NewPrinter(language.English)
)

// Metadata describes the exported model artifact.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
}

// DefaultMetadata is used when no metadata file ships with the model.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, InputSize, InputSize, 3},
		OutputShape: []int64{1, NumClasses},
		Classes:     CanonicalOrder.Strings(),
		ImageSize:   InputSize,
		InputName:   defaultInputName,
		OutputName:  defaultOutputName,
	}
}

// LoadMetadata reads a metadata file, validates it against the embedded
// schema and checks it against the fixed artifact contract.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata is LoadMetadata without the file read.
func ParseMetadata(data []byte) (Metadata, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if errs := validateAgainstSchema(doc); len(errs) > 0 {
		return Metadata{}, fmt.Errorf("invalid metadata: %s", strings.Join(errs, "; "))
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if md.InputName == "" {
		md.InputName = defaultInputName
	}
	if md.OutputName == "" {
		md.OutputName = defaultOutputName
	}
	if err := md.Validate(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// Validate checks the metadata against the shapes the pipeline supports.
func (m Metadata) Validate() error {
	if m.ImageSize != InputSize {
		return fmt.Errorf("image_size must be %d, got %d", InputSize, m.ImageSize)
	}
	want := []int64{1, InputSize, InputSize, 3}
	if !slices.Equal(m.InputShape, want) {
		return fmt.Errorf("input_shape must be %v, got %v", want, m.InputShape)
	}
	if err := CheckOutputShape(m.OutputShape); err != nil {
		return err
	}
	if _, err := ParseClassOrder(m.Classes); err != nil {
		return fmt.Errorf("classes: %w", err)
	}
	return nil
}

// Order returns the output order declared by the metadata.
func (m Metadata) Order() (ClassOrder, error) {
	return ParseClassOrder(m.Classes)
}

// CheckOutputShape accepts shapes equivalent to a single row of NumClasses
// values, such as [4], [1,4] or [1,1,4].
func CheckOutputShape(shape []int64) error {
	if len(shape) == 0 || shape[len(shape)-1] != NumClasses {
		return fmt.Errorf("%w: got %v, want one row of %d", ErrInferenceShape, shape, NumClasses)
	}
	for _, d := range shape[:len(shape)-1] {
		if d != 1 {
			return fmt.Errorf("%w: got %v, want one row of %d", ErrInferenceShape, shape, NumClasses)
		}
	}
	return nil
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

func validateAgainstSchema(instance any) []string {
	err := metadataSchema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
