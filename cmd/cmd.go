package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/webitel/push-connect-service/config"
)

const (
	ServiceName      = "push-connect-service"
	ServiceNamespace = "webitel"

	// shutdownTimeout bounds fx's OnStop hooks (gRPC/HTTP server drain,
	// row store pool close). Per-connection CSM flush has its own,
	// shorter bound (see csm.Shutdown); this is the outer ceiling so a
	// stuck hook can't hang the process past a SIGTERM indefinitely.
	shutdownTimeout = 15 * time.Second
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Microservice for Webitel platform",
		Commands: []*cli.Command{
			serverCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the push delivery server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			app := NewApp(config.Path(c.String("config_file")))

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}
