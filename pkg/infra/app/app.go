// Package app provides application bootstrapping with Cobra, Viper, and Pflag.
//
// Configuration is layered: built-in defaults, an optional YAML config file,
// a .env file in the working directory, ADVISOR_* style environment variables
// and finally explicitly set flags.
//
// Usage:
//
//	app := app.NewApp(
//	    app.WithName("advisor"),
//	    app.WithDescription("Investment advisor service"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	)
//	app.Run()
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// App is the main application structure.
type App struct {
	name        string
	shortDesc   string
	description string
	envPrefix   string
	dotenvFiles []string
	options     CliOptions
	runFunc     RunFunc
	cmd         *cobra.Command
	args        cobra.PositionalArgs
	viper       *viper.Viper
	silence     bool
	noVersion   bool
	noConfig    bool
}

// RunFunc is the application's run function.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// WithName sets the application name.
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
}

// WithShortDescription sets the short description.
func WithShortDescription(desc string) Option {
	return func(a *App) {
		a.shortDesc = desc
	}
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithEnvPrefix overrides the environment variable prefix.
// Defaults to the upper-cased application name.
func WithEnvPrefix(prefix string) Option {
	return func(a *App) {
		a.envPrefix = prefix
	}
}

// WithDotenv sets the dotenv files loaded before configuration.
// Missing files are ignored.
func WithDotenv(files ...string) Option {
	return func(a *App) {
		a.dotenvFiles = files
	}
}

// WithOptions sets the CLI options.
func WithOptions(opts CliOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the run function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithArgs sets the positional args validation.
func WithArgs(args cobra.PositionalArgs) Option {
	return func(a *App) {
		a.args = args
	}
}

// WithSilence disables usage and error printing.
func WithSilence() Option {
	return func(a *App) {
		a.silence = true
	}
}

// WithNoVersion disables version flag.
func WithNoVersion() Option {
	return func(a *App) {
		a.noVersion = true
	}
}

// WithNoConfig disables config file loading.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name:        filepath.Base(os.Args[0]),
		dotenvFiles: []string{".env"},
		viper:       viper.New(),
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.envPrefix == "" {
		a.envPrefix = strings.ToUpper(strings.ReplaceAll(a.name, "-", "_"))
	}

	a.buildCommand()
	return a
}

// buildCommand creates the cobra command.
func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		RunE:         a.runCommand,
		Args:         a.args,
		SilenceUsage: true,
	}

	if a.silence {
		cmd.SilenceErrors = true
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	a.addGlobalFlags(cmd)

	if a.options != nil {
		fss := a.options.Flags()
		for _, name := range fss.Order {
			cmd.Flags().AddFlagSet(fss.FlagSets[name])
		}
	}

	a.cmd = cmd
}

// addGlobalFlags adds global flags to the command.
func (a *App) addGlobalFlags(cmd *cobra.Command) {
	if !a.noConfig {
		cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	}

	if !a.noVersion {
		version.AddFlags(cmd.PersistentFlags())
	}

	cmd.PersistentFlags().BoolP("help", "h", false, "Help for "+a.name)
}

// runCommand is the main run function for the command.
func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	if err := a.loadDotenv(); err != nil {
		return err
	}

	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc()
	}

	return nil
}

// loadDotenv loads dotenv files into the process environment.
// Variables already present in the environment win.
func (a *App) loadDotenv() error {
	for _, f := range a.dotenvFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// loadConfig loads configuration from file, environment, and flags.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper
	configFile, _ := cmd.Flags().GetString("config")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars(v)

	v.SetEnvPrefix(a.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// Binding every flag lets AutomaticEnv see keys that are absent from the file.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	changedFlags := make(map[string]string)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changedFlags[f.Name] = f.Value.String()
		}
	})

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Explicit flags take precedence over file and environment.
	for name, val := range changedFlags {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}

	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR} and $VAR style environment variables in config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(strVal, func(match string) string {
			var varName string
			if strings.HasPrefix(match, "${") {
				varName = match[2 : len(match)-1]
			} else {
				varName = match[1:]
			}
			if envVal := os.Getenv(varName); envVal != "" {
				return envVal
			}
			return match
		})
		if expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// Run executes the application.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
