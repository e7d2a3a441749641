// Package config loads task configuration files.
//
// A task file is YAML or CUE. Either form is unified with an embedded CUE
// schema that closes the structure and supplies defaults, decoded into
// Task and checked with validator struct tags.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/r2s/internal/fispact"
)

//go:embed schema.cue
var schemaCUE string

// ErrInvalidConfig is returned for configuration files that cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Environment variables read by ApplyEnv.
const (
	EnvFispact = "R2S_FISPACT"
	EnvThreads = "R2S_THREADS"
)

// Task is the configuration of an R2S task.
type Task struct {
	Approach     string  `json:"approach" yaml:"approach" validate:"oneof=full simple"`
	Model        string  `json:"model" yaml:"model" validate:"required"`
	Mesh         string  `json:"mesh" yaml:"mesh" validate:"required"`
	MinVolume    float64 `json:"min_volume" yaml:"min_volume" validate:"gte=0"`
	Threads      int     `json:"threads" yaml:"threads" validate:"gte=0"`
	Failure      string  `json:"failure" yaml:"failure" validate:"oneof=best-effort fail-fast"`
	AllowPartial bool    `json:"allow_partial" yaml:"allow_partial"`

	Fispact  Fispact  `json:"fispact" yaml:"fispact"`
	Scenario Scenario `json:"scenario" yaml:"scenario"`
	Source   Source   `json:"source" yaml:"source"`

	// Dir is the directory relative paths are resolved against.
	Dir string `json:"-" yaml:"-"`
}

// Fispact holds the solver executable and the inventory settings.
type Fispact struct {
	Executable       string `json:"executable" yaml:"executable"`
	fispact.Settings `yaml:",inline"`
}

// Scenario selects the irradiation scenario: a template file, a built-in
// profile or a list of steps.
type Scenario struct {
	Template string   `json:"template,omitempty" yaml:"template"`
	Profile  string   `json:"profile,omitempty" yaml:"profile"`
	NormFlux float64  `json:"norm_flux" yaml:"norm_flux" validate:"gte=0"`
	Steps    []Step   `json:"steps,omitempty" yaml:"steps" validate:"dive"`
	Records  []string `json:"records,omitempty" yaml:"records"`
}

// Step is one scenario step. Duration is a time literal such as "2.5y".
type Step struct {
	Flux     float64 `json:"flux" yaml:"flux" validate:"gte=0"`
	Duration string  `json:"duration" yaml:"duration" validate:"required"`
	Record   string  `json:"record" yaml:"record" validate:"omitempty,oneof=ATOMS SPEC"`
	Nominal  bool    `json:"nominal" yaml:"nominal"`
}

// Source holds the source synthesis options.
type Source struct {
	Time              string  `json:"time" yaml:"time"`
	IntensityFilter   float64 `json:"intensity_filter" yaml:"intensity_filter" validate:"gte=0,lt=1"`
	VolumeFilter      float64 `json:"volume_filter" yaml:"volume_filter" validate:"gte=0,lt=1"`
	StartDistribution int     `json:"start_distribution" yaml:"start_distribution" validate:"gte=1"`
	Particle          string  `json:"particle" yaml:"particle" validate:"oneof=n p e"`
	Output            string  `json:"output" yaml:"output" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a .yaml, .yml or .cue task file.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	var user cue.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := checkYAMLFields(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
		user = ctx.Encode(raw)
	case ".cue":
		user = ctx.CompileBytes(data, cue.Filename(path))
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	t, err := decode(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Dir = filepath.Dir(path)
	return t, nil
}

// checkYAMLFields rejects keys that Task does not know.
func checkYAMLFields(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t Task
	if err := dec.Decode(&t); err != nil {
		return err
	}
	return nil
}

func decode(ctx *cue.Context, user cue.Value) (*Task, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Task"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	v := schema.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	var t Task
	if err := v.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks field constraints and that exactly one scenario source
// is given.
func (t *Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	n := 0
	for _, set := range []bool{t.Scenario.Template != "", t.Scenario.Profile != "", len(t.Scenario.Steps) > 0} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%w: scenario needs exactly one of template, profile and steps", ErrInvalidConfig)
	}
	if len(t.Scenario.Steps) > 0 && t.Scenario.NormFlux == 0 && !slices.ContainsFunc(t.Scenario.Steps, isNominal) {
		return fmt.Errorf("%w: scenario steps need norm_flux or a nominal irradiation step", ErrInvalidConfig)
	}
	for name := range t.Fispact.Libraries {
		if !fispact.IsLibrary(name) {
			return fmt.Errorf("%w: unknown FISPACT library %q", ErrInvalidConfig, name)
		}
	}
	return nil
}

func isNominal(s Step) bool { return s.Nominal && s.Flux > 0 }

// Resolve returns p relative to the task file directory unless absolute.
func (t *Task) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(t.Dir, p)
}

// LoadEnv loads the .env files found in dirs. Variables already set are
// kept.
func LoadEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides the solver executable with R2S_FISPACT and sets the
// worker count from R2S_THREADS when the file leaves it at zero.
func (t *Task) ApplyEnv() error {
	if exe := os.Getenv(EnvFispact); exe != "" {
		t.Fispact.Executable = exe
	}
	if s := os.Getenv(EnvThreads); s != "" && t.Threads == 0 {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvThreads, s)
		}
		t.Threads = n
	}
	return nil
}
