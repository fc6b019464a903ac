package calib

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOneOrMany(t *testing.T) {
	var c struct {
		Scalar  OneOrMany[string] `yaml:"scalar"`
		List    OneOrMany[string] `yaml:"list"`
		Missing OneOrMany[int]    `yaml:"missing"`
		Flags   OneOrMany[bool]   `yaml:"flags"`
	}
	input := "scalar: x\nlist: [y, z]\nflags: true\n"
	require.NoError(t, yaml.Unmarshal([]byte(input), &c))

	assert.False(t, c.Scalar.IsList)
	assert.Equal(t, []string{"x"}, c.Scalar.Values)
	assert.True(t, c.List.IsList)
	assert.Equal(t, 2, c.List.Len())
	assert.False(t, c.Missing.IsSet())
	assert.Equal(t, []bool{true, true}, c.Flags.Broadcast(2))

	assert.Equal(t, []string{"x", "x", "x"}, c.Scalar.Broadcast(3))
	assert.Equal(t, []string{"y", "z"}, c.List.Broadcast(5))
	assert.Equal(t, "x", c.Scalar.At(4))
	assert.Equal(t, "z", c.List.At(1))
	assert.Equal(t, "", c.List.At(2))
}

func TestOneOrManyTypeError(t *testing.T) {
	var c struct {
		Flat OneOrMany[bool] `yaml:"flat"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("flat: maybe\n"), &c))
}

func TestEnforceList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, EnforceList(One("a, b ,c")))
	assert.Equal(t, []string{"a, b"}, EnforceList(Many("a, b")))
	assert.Empty(t, EnforceList(OneOrMany[string]{}))
}

func TestRangeList(t *testing.T) {
	var c struct {
		Single RangeList `yaml:"single"`
		Many   RangeList `yaml:"many"`
	}
	input := "single: [0, 10]\nmany: [[0, 1], [2, 3]]\n"
	require.NoError(t, yaml.Unmarshal([]byte(input), &c))

	assert.False(t, c.Single.IsList)
	assert.Equal(t, Range{0, 10}, c.Single.At(3))
	assert.True(t, c.Many.IsList)
	assert.Equal(t, Range{2, 3}, c.Many.At(1))
	assert.True(t, c.Many.At(0).Valid())
	assert.False(t, Range{1, 1}.Valid())
}

func TestAutoFloat(t *testing.T) {
	var c struct {
		Min OneOrMany[AutoFloat] `yaml:"min"`
		Max OneOrMany[AutoFloat] `yaml:"max"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("min: auto\nmax: [1.5, auto]\n"), &c))

	assert.True(t, c.Min.At(0).Auto)
	assert.Equal(t, 7.0, c.Min.At(0).Or(7))
	assert.Equal(t, 1.5, c.Max.At(0).Or(7))
	assert.Equal(t, 7.0, c.Max.At(1).Or(7))

	var bad struct {
		Min AutoFloat `yaml:"min"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("min: never\n"), &bad))
}

func TestLoadYAML(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(filename, []byte("verbosity: 2\ncommand:\n  run: true\n"), 0o644))

	config := DefaultDecodeWCConfig()
	require.NoError(t, LoadYAML(filename, &config))
	assert.Equal(t, 2, config.Verbosity)
	assert.True(t, config.Command.Run)
	assert.True(t, config.Command.Print, "defaults are kept")

	err := LoadYAML(filepath.Join(t.TempDir(), "missing.yml"), &config)
	var openErr *ErrOpenFile
	assert.True(t, errors.As(err, &openErr))
}

func TestConfigFilename(t *testing.T) {
	name, err := ConfigFilename("a.yml", []string{"b.yml"})
	require.NoError(t, err)
	assert.Equal(t, "a.yml", name)

	name, err = ConfigFilename("", []string{"b.yml"})
	require.NoError(t, err)
	assert.Equal(t, "b.yml", name)

	_, err = ConfigFilename("", nil)
	assert.Error(t, err)
}

func TestDatabaseConfigFromEnv(t *testing.T) {
	t.Setenv("CALIB_DB_HOST", "db.example.org")
	t.Setenv("CALIB_DB_DRIVER", "mysql")

	c := defaultDatabaseConfig()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, "db.example.org", c.Host)
	assert.Equal(t, "mysql", c.Driver)
	assert.Equal(t, "3306", c.Port)
}

func TestCheckSameSize(t *testing.T) {
	assert.NoError(t, checkSameSize([]string{"a", "b"}, 2, 2))
	err := checkSameSize([]string{"a", "b"}, 2, 3)
	var sizeErr *ErrSizeMismatch
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, []int{2, 3}, sizeErr.Sizes)
}
