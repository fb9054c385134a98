package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts the daemon to the kardianos service interface.
type program struct {
	cfgPath string
	app     *app
}

func (p *program) Start(_ service.Service) error {
	a, err := loadApp(p.cfgPath)
	if err != nil {
		return err
	}
	p.app = a
	return p.app.start()
}

func (p *program) Stop(_ service.Service) error {
	if p.app != nil {
		p.app.stop()
	}
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service [install|uninstall|start|stop|run]",
		Short: "Manage threadpilot as a system service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}

			svcConfig := &service.Config{
				Name:        "threadpilot",
				DisplayName: "threadpilot",
				Description: "Slack thread assistant daemon",
				Arguments:   []string{"service", "run", "--config", cfgPath},
			}

			prg := &program{cfgPath: cfgPath}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return fmt.Errorf("creating service: %w", err)
			}

			action := args[0]
			switch action {
			case "run":
				return svc.Run()
			case "install", "uninstall", "start", "stop":
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Printf("service %s: done\n", action)
				return nil
			default:
				return fmt.Errorf("unknown service action %q", action)
			}
		},
	}
	return cmd
}
