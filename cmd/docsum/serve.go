package main

import (
	"github.com/spf13/cobra"

	"github.com/sevigo/docsum/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP summarization API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), c.cfg, c.logger, nil)
			if err != nil {
				return err
			}
			return a.Server().ListenAndServe(cmd.Context(), c.cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, \":8080\")")
	return cmd
}
