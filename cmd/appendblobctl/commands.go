// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/catalog"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/rotation"
)

// cli holds the state shared by all commands.
type cli struct {
	configPath string
	section    string
	verbose    bool

	// openStore is replaced in tests.
	openStore func(ctx context.Context, settings backend.Settings) (backend.AppendBlobStore, error)
	now       func() time.Time
}

func newRootCmd() *cobra.Command {
	c := &cli{openStore: backend.Open, now: time.Now}
	return c.buildRootCmd()
}

func (c *cli) buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "appendblobctl",
		Short:         "inspect and maintain hourly append blobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "YAML file holding the exporter configuration")
	cmd.PersistentFlags().StringVar(&c.section, "section", "azureappendblob", "key of the exporter section in the file; empty for the whole file")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log every remote operation")

	cmd.AddCommand(
		c.buildNameCmd(),
		c.buildListCmd(),
		c.buildLatestCmd(),
		c.buildSealCmd(),
		c.buildVerifyCmd(),
	)
	return cmd
}

func (c *cli) logger() (*zap.Logger, error) {
	if c.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (c *cli) config() (*azureappendblobexporter.Config, error) {
	return loadConfig(c.configPath, c.section)
}

// controller opens the configured store. The caller closes the store.
func (c *cli) controller(ctx context.Context) (*rotation.Controller, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}
	store, err := c.openStore(ctx, cfg.StoreSettings())
	if err != nil {
		return nil, errors.Wrapf(err, "open container %q", cfg.Container)
	}
	return &rotation.Controller{
		Store:    store,
		Resolver: cfg.Resolver(),
		Access:   backend.PublicAccess(cfg.PublicAccess),
		Logger:   logger,
	}, nil
}

// buildNameCmd prints the blob name of an instant.
func (c *cli) buildNameCmd() *cobra.Command {
	var atFlag string

	cmd := &cobra.Command{
		Use:   "name",
		Short: "print the blob name for an instant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			at := c.now()
			if atFlag != "" {
				at, err = time.Parse(time.RFC3339, atFlag)
				if err != nil {
					return errors.Wrapf(err, "parse --at %q", atFlag)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Resolver().Resolve(at))
			return nil
		},
	}
	cmd.Flags().StringVar(&atFlag, "at", "", "RFC 3339 instant (default now)")
	return cmd
}

// buildListCmd lists every blob of the configured resource and identity.
func (c *cli) buildListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list blobs in listing order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := c.controller(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Store.Close()

			s := &catalog.Scanner{Lister: ctrl.Store, Prefix: ctrl.Resolver.Prefix()}
			return s.Each(cmd.Context(), func(name string) bool {
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return true
			})
		},
	}
}

// buildLatestCmd prints the most recently listed blob.
func (c *cli) buildLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "print the most recent blob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := c.controller(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Store.Close()

			s := &catalog.Scanner{Lister: ctrl.Store, Prefix: ctrl.Resolver.Prefix()}
			last, err := s.Last(cmd.Context())
			if err != nil {
				return err
			}
			if last == "" {
				return errors.Newf("no blobs under %q", ctrl.Resolver.Prefix())
			}
			fmt.Fprintln(cmd.OutOrStdout(), last)
			return nil
		},
	}
}

// buildSealCmd seals a blob, by default the one before the current hour.
// Used when a collector is retired and its last hour would otherwise stay
// open. The current hour's blob is only sealed with --force.
func (c *cli) buildSealCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seal [<name>]",
		Short: "close the JSON document of a blob (default: the one before the current hour)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := c.controller(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Store.Close()

			current := ctrl.Resolver.Resolve(c.now())
			name := ""
			if len(args) == 1 {
				name = args[0]
				if name == current && !force {
					return errors.Newf("%s is the current hour's blob; pass --force to seal it", name)
				}
			} else {
				s := &catalog.Scanner{Lister: ctrl.Store, Prefix: ctrl.Resolver.Prefix()}
				if name, err = s.Predecessor(cmd.Context(), current); err != nil {
					return err
				}
				if name == "" {
					return errors.Newf("no blobs before %q", current)
				}
			}

			changed, err := ctrl.Seal(cmd.Context(), name)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(cmd.OutOrStdout(), "Sealed %s.\n", name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was already sealed.\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "allow sealing the current hour's blob")
	return cmd
}

// buildVerifyCmd checks that blobs hold complete documents.
func (c *cli) buildVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <name>...",
		Short: "check that sealed blobs parse as {\"records\":[...]} documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := c.controller(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Store.Close()

			failed := 0
			for _, name := range args {
				n, err := ctrl.Verify(cmd.Context(), name)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", name, n)
			}
			if failed > 0 {
				return errors.Newf("%d of %d blobs are not valid documents", failed, len(args))
			}
			return nil
		},
	}
}
