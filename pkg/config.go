package calib

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v3"
)

// OneOrMany is a configuration value given either as a single YAML scalar
// or as a sequence. IsList keeps track of the form used in the file.
type OneOrMany[T any] struct {
	Values []T
	IsList bool
}

func One[T any](value T) OneOrMany[T] {
	return OneOrMany[T]{Values: []T{value}}
}

func Many[T any](values ...T) OneOrMany[T] {
	return OneOrMany[T]{Values: values, IsList: true}
}

func (o *OneOrMany[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		*o = OneOrMany[T]{}
		return nil
	}
	if node.Kind == yaml.SequenceNode {
		var values []T
		if err := node.Decode(&values); err != nil {
			return err
		}
		*o = OneOrMany[T]{Values: values, IsList: true}
		return nil
	}
	var value T
	if err := node.Decode(&value); err != nil {
		return err
	}
	*o = OneOrMany[T]{Values: []T{value}}
	return nil
}

func (o OneOrMany[T]) MarshalYAML() (interface{}, error) {
	if o.IsList {
		return o.Values, nil
	}
	if len(o.Values) == 0 {
		return nil, nil
	}
	return o.Values[0], nil
}

// IsSet reports whether the value was present (and not null) in the file.
func (o OneOrMany[T]) IsSet() bool {
	return len(o.Values) > 0
}

func (o OneOrMany[T]) Len() int {
	return len(o.Values)
}

// Broadcast returns n values. A scalar is repeated n times, a list is
// returned as is.
func (o OneOrMany[T]) Broadcast(n int) []T {
	if o.IsList || len(o.Values) == 0 {
		return o.Values
	}
	values := make([]T, n)
	for i := range values {
		values[i] = o.Values[0]
	}
	return values
}

// At returns the i-th value, or the scalar whatever the index.
func (o OneOrMany[T]) At(i int) T {
	var zero T
	if len(o.Values) == 0 {
		return zero
	}
	if !o.IsList {
		return o.Values[0]
	}
	if i < 0 || i >= len(o.Values) {
		return zero
	}
	return o.Values[i]
}

// EnforceList turns a comma separated scalar into a list, trimming spaces.
// Lists are returned unchanged.
func EnforceList(o OneOrMany[string]) []string {
	if o.IsList || len(o.Values) == 0 {
		return o.Values
	}
	elements := strings.Split(o.Values[0], ",")
	for i, element := range elements {
		elements[i] = strings.TrimSpace(element)
	}
	return elements
}

// Range is a [min, max] pair written as a two-element YAML sequence.
type Range [2]float64

func (r Range) Min() float64 { return r[0] }
func (r Range) Max() float64 { return r[1] }

func (r Range) Valid() bool {
	return r[0] < r[1]
}

// CommandConfig tells whether external commands are printed and/or executed.
type CommandConfig struct {
	Print bool `yaml:"print"`
	Run   bool `yaml:"run"`
}

// DatabaseConfig describes the optional results/run-conditions database.
// Credentials can be overridden from the environment.
type DatabaseConfig struct {
	Use    bool   `yaml:"use"`
	Record bool   `yaml:"record"`
	Driver string `yaml:"driver" env:"CALIB_DB_DRIVER"`
	Host   string `yaml:"host" env:"CALIB_DB_HOST"`
	Port   string `yaml:"port" env:"CALIB_DB_PORT"`
	User   string `yaml:"user" env:"CALIB_DB_USER"`
	Passwd string `yaml:"pass" env:"CALIB_DB_PASS"`
	DBName string `yaml:"dbname" env:"CALIB_DB_NAME"`
	DSN    string `yaml:"dsn" env:"CALIB_DB_DSN"`
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: "sqlite",
		Port:   "3306",
		DSN:    "calibration.db",
	}
}

func (c *DatabaseConfig) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Enabled reports whether any stage feature needs the database.
func (c DatabaseConfig) Enabled() bool {
	return c.Use || c.Record
}

// LoadYAML reads filename into config. Defaults must be set beforehand.
func LoadYAML(filename string, config any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing configuration file %q: %w", filename, err)
	}
	return nil
}

// ConfigFilename picks the configuration file from the -config flag or,
// when empty, from the single positional argument.
func ConfigFilename(flagValue string, args []string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return "", fmt.Errorf("a configuration file is required (-config <file.yml>)")
}

func sortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

// RangeList is either one [min, max] pair or a list of pairs.
type RangeList struct {
	OneOrMany[Range]
}

func (r *RangeList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode && len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var ranges []Range
		if err := node.Decode(&ranges); err != nil {
			return err
		}
		r.OneOrMany = OneOrMany[Range]{Values: ranges, IsList: true}
		return nil
	}
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		r.OneOrMany = OneOrMany[Range]{}
		return nil
	}
	var single Range
	if err := node.Decode(&single); err != nil {
		return err
	}
	r.OneOrMany = One(single)
	return nil
}

func (r RangeList) MarshalYAML() (interface{}, error) {
	return r.OneOrMany.MarshalYAML()
}

// AutoFloat is a number or the string "auto".
type AutoFloat struct {
	Auto  bool
	Value float64
}

func (a *AutoFloat) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Value == "auto" {
		*a = AutoFloat{Auto: true}
		return nil
	}
	var value float64
	if err := node.Decode(&value); err != nil {
		return fmt.Errorf("expected a number or 'auto': %w", err)
	}
	*a = AutoFloat{Value: value}
	return nil
}

func (a AutoFloat) MarshalYAML() (interface{}, error) {
	if a.Auto {
		return "auto", nil
	}
	return a.Value, nil
}

// Or returns the value, or fallback when automatic.
func (a AutoFloat) Or(fallback float64) float64 {
	if a.Auto {
		return fallback
	}
	return a.Value
}

// BeamInfo and PlotInfo describe the run shown on plots.
type BeamInfo struct {
	Particle string `yaml:"particle"`
	Energy   string `yaml:"energy"`
}

type PlotInfo struct {
	Exp      string   `yaml:"exp"`
	Campaign string   `yaml:"campaign"`
	Beam     BeamInfo `yaml:"beam"`
	Run      string   `yaml:"run"`
}
