package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ircline/internal/app"
	"github.com/vovakirdan/ircline/internal/config"
	"github.com/vovakirdan/ircline/internal/log"
)

var version = "dev"

func main() {
	var (
		configPath string
		host       string
		port       int
		tls        bool
		nick       string
		logLevel   string
	)

	root := &cobra.Command{
		Use:          "ircline",
		Short:        "A terminal IRC client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("warn")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", path, err)
			}
			if cmd.Flags().Changed("server") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("tls") {
				cfg.Server.TLS = tls
			}
			if cmd.Flags().Changed("nick") {
				cfg.Nickname = nick
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			logger, closer, err := log.NewFile(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.New(&cfg, logger).Run(ctx)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().StringVarP(&host, "server", "s", "", "server hostname")
	root.Flags().IntVarP(&port, "port", "p", 0, "server port")
	root.Flags().BoolVar(&tls, "tls", true, "use TLS")
	root.Flags().StringVarP(&nick, "nick", "n", "", "nickname")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ircline", version)
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
