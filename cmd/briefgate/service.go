package main

import (
	"context"
	"fmt"

	"github.com/briefgate/briefgate/internal/config"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts the gateway to the system service manager.
type program struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- runServe(ctx, p.cfg)
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		return <-p.done
	}
	return nil
}

func serviceConfig(args []string) *service.Config {
	return &service.Config{
		Name:        "briefgate",
		DisplayName: "briefgate gateway",
		Description: "Human approval front-end for the briefing agent",
		Arguments:   args,
	}
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage briefgate as a system service",
	}

	run := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := service.New(&program{cfg: cfg}, serviceConfig(nil))
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	configFlag(run)
	cmd.AddCommand(run)

	for _, action := range []string{"install", "uninstall", "start", "stop"} {
		cmd.AddCommand(serviceControlCmd(action))
	}
	return cmd
}

func serviceControlCmd(action string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the system service", action),
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := []string{"service", "run"}
			if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
				args = append(args, "--config", cfgPath)
			}
			svc, err := service.New(&program{}, serviceConfig(args))
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
	configFlag(cmd)
	return cmd
}
