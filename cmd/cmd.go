package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/im-presence-service/config"
)

const ServiceName = "im-presence-service"

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Presence and state synchronization for direct messaging",
		Version: version,
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
		Usage:   "Run the websocket and REST server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}

			level := new(slog.LevelVar)
			logger := NewLogger(cfg.Log, level, os.Stdout)
			logger.Info("STARTING",
				"version", version,
				"commit", commit,
				"commit_date", commitDate,
				"branch", branch,
				"build_ts", buildTimestamp,
			)

			// [HOT_RELOAD] only the log level is applied live
			cfg.Watch(func(next *config.Config, err error) {
				if err != nil {
					logger.Error("CONFIG_RELOAD_FAILED", "err", err)
					return
				}
				level.Set(ParseLevel(next.Log.Level))
				logger.Info("CONFIG_RELOADED", "log_level", next.Log.Level)
			})

			app := NewApp(cfg, logger)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			logger.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}
