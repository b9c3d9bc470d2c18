// Package cli is the focusblocks command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"focus-blocks/internal/auth"
	"focus-blocks/internal/client"
	"focus-blocks/internal/config"
)

type app struct {
	v       *viper.Viper
	cfgFile string
}

// Execute runs the command tree. It is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:   "focusblocks",
		Short: "Focus sessions, schedules and site blocking from one local daemon.",
		Long: `focusblocks runs a local coordinator that owns focus sessions, weekly
blocking schedules and temporary bypasses, and installs the matching
blocking rules.

Run "focusblocks serve" once, then drive it with the other commands or the
terminal popup.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.focusblocks.yaml)")
	flags.String("data-dir", "", "data directory (default ~/.focusblocks)")
	flags.StringP("loglevel", "l", "", "log level: debug, info, warn, error")
	flags.String("daemon", "", "daemon base URL (default http://<listen>)")
	flags.String("token", "", "API token (default read from the token file)")
	_ = a.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("loglevel"))
	_ = a.v.BindPFlag("daemon", flags.Lookup("daemon"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))

	rootCmd.AddCommand(
		a.newServeCmd(),
		a.newStartCmd(),
		a.newEndCmd(),
		a.newStatusCmd(),
		a.newBypassCmd(),
		a.newListsCmd(),
		a.newSchedulesCmd(),
		a.newRulesCmd(),
		a.newAlarmsCmd(),
		a.newStatsCmd(),
		a.newBackupCmd(),
		a.newServiceCmd(),
		a.newPopupCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".focusblocks")
		a.v.SetConfigType("yaml")
	}
	config.BindEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (a *app) loadConfig() (config.Config, error) {
	return config.Load(a.v)
}

// newClient builds a daemon client from flags, falling back to the listen
// address and token file of the local configuration.
func (a *app) newClient() (*client.Client, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(a.v.GetString("daemon"))
	if baseURL == "" {
		baseURL = "http://" + cfg.Listen
	}
	token := strings.TrimSpace(a.v.GetString("token"))
	if token == "" && cfg.AuthEnabled {
		if stored, err := auth.ReadTokenFile(cfg.TokenFile); err == nil {
			token = stored
		}
	}
	return client.New(baseURL, token), nil
}
