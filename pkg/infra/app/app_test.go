package app

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kart-io/logger/option"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Section struct {
		Name  string `mapstructure:"name"`
		Count int    `mapstructure:"count"`
	} `mapstructure:"section"`

	completed bool
	invalid   bool
}

func (o *testOptions) Flags() (fss NamedFlagSets) {
	fs := fss.FlagSet("section")
	fs.StringVar(&o.Section.Name, "section.name", "default", "name")
	fs.IntVar(&o.Section.Count, "section.count", 1, "count")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid options")
	}
	return nil
}

func runApp(t *testing.T, opts *testOptions, args ...string) error {
	t.Helper()
	a := NewApp(
		WithName("app-test"),
		WithOptions(opts),
		WithDotenv(filepath.Join(t.TempDir(), "missing.env")),
		WithNoVersion(),
		WithSilence(),
		WithRunFunc(func() error { return nil }),
	)
	a.Command().SetArgs(args)
	return a.Command().Execute()
}

func TestNamedFlagSetsOrder(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("b")
	fss.FlagSet("a")
	fss.FlagSet("b")
	assert.Equal(t, []string{"b", "a"}, fss.Order)
	assert.Len(t, fss.FlagSets, 2)
}

func TestAppDefaults(t *testing.T) {
	opts := &testOptions{}
	require.NoError(t, runApp(t, opts))
	assert.True(t, opts.completed)
	assert.Equal(t, "default", opts.Section.Name)
	assert.Equal(t, 1, opts.Section.Count)
}

func TestAppEnvOverridesDefault(t *testing.T) {
	t.Setenv("APP_TEST_SECTION_NAME", "from-env")
	opts := &testOptions{}
	require.NoError(t, runApp(t, opts))
	assert.Equal(t, "from-env", opts.Section.Name)
}

func TestAppFlagOverridesEnv(t *testing.T) {
	t.Setenv("APP_TEST_SECTION_COUNT", "7")
	opts := &testOptions{}
	require.NoError(t, runApp(t, opts, "--section.count=9"))
	assert.Equal(t, 9, opts.Section.Count)
}

func TestAppConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("section:\n  name: from-file\n"), 0o600))

	opts := &testOptions{}
	require.NoError(t, runApp(t, opts, "--config", path))
	assert.Equal(t, "from-file", opts.Section.Name)
}

func TestAppValidateError(t *testing.T) {
	opts := &testOptions{invalid: true}
	err := runApp(t, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid options")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("APP_TEST_HOST", "db.local")
	v := viper.New()
	v.Set("a", "${APP_TEST_HOST}:6379")
	v.Set("b", "$APP_TEST_UNSET")
	v.Set("c", 3)

	expandEnvVars(v)
	assert.Equal(t, "db.local:6379", v.GetString("a"))
	assert.Equal(t, "$APP_TEST_UNSET", v.GetString("b"))
	assert.Equal(t, 3, v.GetInt("c"))
}

func TestAnnotateLogger(t *testing.T) {
	opt := option.DefaultLogOption()
	AnnotateLogger(opt, "advisor")

	assert.Equal(t, "advisor", opt.InitialFields["service.name"])
	assert.Equal(t, Version(), opt.InitialFields["service.version"])
	assert.Equal(t, runtime.Version(), opt.InitialFields["service.go_version"])
}
