package main

import (
	"fmt"

	"github.com/flemzord/cadence/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts the daemon loop to the service manager interface.
// Start must not block, so the loop runs on its own goroutine; Stop
// lets the loop's own signal handling finish the shutdown.
type program struct {
	params app.RunParams
	errCh  chan error
}

func (p *program) Start(service.Service) error {
	p.errCh = make(chan error, 1)
	go func() { p.errCh <- app.Run(p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service [install|uninstall|start|stop|run]",
		Short: "Manage cadence as a system service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig := &service.Config{
				Name:        "cadence",
				DisplayName: "cadence scheduler",
				Description: "Periodic memory summarization and ambient context refresh",
				Arguments:   []string{"start"},
			}
			if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			prg := &program{params: params(cmd)}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}

			switch args[0] {
			case "install":
				if err := svc.Install(); err != nil {
					return err
				}
				fmt.Println("service installed")
				return nil
			case "uninstall":
				if err := svc.Uninstall(); err != nil {
					return err
				}
				fmt.Println("service uninstalled")
				return nil
			case "start":
				return svc.Start()
			case "stop":
				return svc.Stop()
			case "run":
				// Foreground run under the service manager.
				return svc.Run()
			default:
				return fmt.Errorf("unknown service action %q", args[0])
			}
		},
	}
	return cmd
}
