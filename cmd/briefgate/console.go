package main

import (
	"github.com/briefgate/briefgate/internal/console"
	"github.com/spf13/cobra"
)

func consoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run an interactive review session in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.store.Create()
			if err != nil {
				return err
			}
			defer a.store.Delete(sess.ID())

			c := &console.Console{
				Session: sess,
				Welcome: a.welcome,
				Logger:  a.logger,
			}
			return c.Run(ctx)
		},
	}
	configFlag(cmd)
	return cmd
}
