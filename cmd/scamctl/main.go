package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scamshield/internal/backend"
	"scamshield/pkg/logger"
)

var version = "dev"

// app carries state shared by every subcommand
type app struct {
	cfgFile string
	v       *viper.Viper
	out     io.Writer
	log     *logger.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, log: logger.NewNop()}

	cmd := &cobra.Command{
		Use:   "scamctl",
		Short: "ScamShield command line client",
		Long: `scamctl classifies suspicious messages against the ScamShield API and
falls back to the built-in keyword heuristic when the API cannot be reached.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/scamshield/scamctl.yaml)")
	cmd.PersistentFlags().String("api-url", "http://localhost:8000", "backend base URL")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "backend request timeout")
	cmd.PersistentFlags().String("token-file", "", "token file (default: $XDG_CONFIG_HOME/scamshield/tokens.json)")
	cmd.PersistentFlags().Bool("verbose", false, "log to stderr")

	_ = a.v.BindPFlag("backend.base_url", cmd.PersistentFlags().Lookup("api-url"))
	_ = a.v.BindPFlag("backend.timeout", cmd.PersistentFlags().Lookup("timeout"))
	_ = a.v.BindPFlag("backend.token_file", cmd.PersistentFlags().Lookup("token-file"))
	_ = a.v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(a.scanCmd())
	cmd.AddCommand(a.loginCmd())
	cmd.AddCommand(a.logoutCmd())
	cmd.AddCommand(a.whoamiCmd())
	cmd.AddCommand(a.lexiconCmd())

	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(dir, "scamshield"))
		}
		a.v.SetConfigName("scamctl")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("SCAMSHIELD")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if a.v.GetBool("verbose") {
		a.log = logger.New(logger.Config{Level: "debug", Format: "console", Output: os.Stderr})
	}
	return nil
}

// client builds a backend client whose tokens persist in the token file
func (a *app) client() (*backend.Client, error) {
	path := a.v.GetString("backend.token_file")
	if path == "" {
		var err error
		if path, err = backend.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}

	return backend.NewClient(backend.Config{
		BaseURL: a.v.GetString("backend.base_url"),
		Timeout: a.v.GetDuration("backend.timeout"),
		Tokens:  backend.NewFileTokenStore(path),
	}, a.log), nil
}
