// cmd/typeprefs/commands.go
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/typeprefs/metadata"
	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/prefs"
)

func newGetCmd(c *cli) *cobra.Command {
	var def int
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a preference",
		Long:  `Prints the stored value of <key>, or the --default value when nothing is stored.`,
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVarP(&def, "default", "d", metadata.DefaultValue, "Value printed when the key is not stored")
	cmd.RunE = c.withBackend(func(ctx context.Context, cmd *cobra.Command, b common.Backend, args []string) error {
		p, err := prefs.New(b, args[0], metadata.NewPreferenceInt(metadata.WithDefault(def)))
		if err != nil {
			return err
		}
		v, err := p.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	})
	return cmd
}

func newSetCmd(c *cli) *cobra.Command {
	var value int
	cmd := &cobra.Command{
		Use:   "set <key> [<value>]",
		Short: "Store a preference value",
		Long: `Stores an integer under <key>. The value is either the second argument
or --value. Negative values look like flags, so pass them with --value
or after "--":

  typeprefs set audio.volume --value=-5
  typeprefs set -c typeprefs.yaml -- audio.volume -5`,
		Args: cobra.RangeArgs(1, 2),
	}
	cmd.Flags().IntVarP(&value, "value", "v", 0, "Value to store (alternative to the second argument)")
	cmd.RunE = c.withBackend(func(ctx context.Context, cmd *cobra.Command, b common.Backend, args []string) error {
		fromFlag := cmd.Flags().Changed("value")
		switch {
		case fromFlag && len(args) == 2:
			return fmt.Errorf("value given both as argument '%s' and with --value", args[1])
		case !fromFlag && len(args) == 1:
			return fmt.Errorf("missing value for '%s': pass it as second argument or with --value", args[0])
		case len(args) == 2:
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("value '%s' is not an integer: %w", args[1], err)
			}
			value = n
		}

		p, err := prefs.New(b, args[0], metadata.NewPreferenceInt())
		if err != nil {
			return err
		}
		if err := p.Set(ctx, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%d\n", args[0], value)
		return nil
	})
	return cmd
}

func newResetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <key>",
		Short: "Remove a stored preference so readers fall back to the default",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.withBackend(func(ctx context.Context, cmd *cobra.Command, b common.Backend, args []string) error {
		p, err := prefs.New(b, args[0], metadata.NewPreferenceInt())
		if err != nil {
			return err
		}
		if err := p.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s reset\n", args[0])
		return nil
	})
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every stored preference",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.withBackend(func(ctx context.Context, cmd *cobra.Command, b common.Backend, args []string) error {
		keys, err := b.Keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			v, found, err := b.GetInt(ctx, k)
			if err != nil {
				return err
			}
			if !found {
				continue // removed since Keys ran
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%d\n", k, v)
		}
		return nil
	})
	return cmd
}

func newPingCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured backend is reachable",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.withBackend(func(ctx context.Context, cmd *cobra.Command, b common.Backend, args []string) error {
		if err := b.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", b.Name())
		return nil
	})
	return cmd
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the backends compiled into this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range backends.RegisteredBackends() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
