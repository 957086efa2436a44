// cmd/typeprefs/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/typeprefs"
	_ "github.com/chmenegatti/typeprefs/driver/memory"
	_ "github.com/chmenegatti/typeprefs/driver/mongo"
	_ "github.com/chmenegatti/typeprefs/driver/mysql"
	_ "github.com/chmenegatti/typeprefs/driver/postgres"
	_ "github.com/chmenegatti/typeprefs/driver/redis"
	_ "github.com/chmenegatti/typeprefs/driver/sqlite"
	_ "github.com/chmenegatti/typeprefs/driver/sqlserver"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
	"github.com/chmenegatti/typeprefs/pkg/logging"
)

// cli holds what the subcommands share for one invocation.
type cli struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "typeprefs",
		Short: "Inspect and edit stored integer preferences",
		Long: `typeprefs reads and writes the integer preferences kept by the
configured backend (memory, sqlite, postgres, mysql, sqlserver, mongodb
or redis). Keys are the ones derived from tagged struct fields, e.g.
"camera_settings.bitrate_kbps".`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"Configuration file (default is ./typeprefs.yaml or $HOME/.typeprefs/typeprefs.yaml)")

	rootCmd.AddCommand(
		newGetCmd(c),
		newSetCmd(c),
		newResetCmd(c),
		newListCmd(c),
		newPingCmd(c),
		newBackendsCmd(),
	)
	return rootCmd
}

// withBackend loads configuration, installs the logger and opens the
// backend around fn.
func (c *cli) withBackend(fn func(ctx context.Context, cmd *cobra.Command, b common.Backend, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(c.cfgFile)
		if err != nil {
			return err
		}
		logger, restore, err := logging.Install(cfg.Logging)
		if err != nil {
			return err
		}
		defer restore()
		defer func() { _ = logger.Sync() }()

		b, err := typeprefs.Open(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if cfg.Store.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Store.Timeout)
			defer cancel()
		}
		return fn(ctx, cmd, b, args)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: '%s'\n", err)
		os.Exit(1)
	}
}
