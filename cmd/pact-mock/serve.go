package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/form3tech-oss/pact-consumer/internal/app/configuration"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pact-mock",
		Short:         "Contract validating mock servers for pact consumer tests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	return root
}

type serveOptions struct {
	envFile   string
	adminPort int
	logLevel  string
	pluginDir string
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := opts.config(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), config)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "File with environment variables, ignored when missing")
	cmd.Flags().IntVar(&opts.adminPort, "admin-port", 0, "Port of the admin API (overrides ADMIN_PORT)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	cmd.Flags().StringVar(&opts.pluginDir, "plugin-dir", "", "Directory of installed plugins (overrides PLUGIN_DIR)")
	return cmd
}

// config reads the env file, then the environment, then the flags that
// were set explicitly.
func (o serveOptions) config(cmd *cobra.Command) (configuration.Config, error) {
	if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
		return configuration.Config{}, err
	}

	config, err := configuration.NewFromEnv()
	if err != nil {
		return config, err
	}

	flags := cmd.Flags()
	if flags.Changed("admin-port") {
		config.AdminPort = o.adminPort
	}
	if flags.Changed("log-level") {
		config.LogLevel = o.logLevel
	}
	if flags.Changed("plugin-dir") {
		config.PluginDir = o.pluginDir
	}
	return config, nil
}

func serve(ctx context.Context, config configuration.Config) error {
	logFile, err := configuration.ConfigureLogging(config)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adminServer := configuration.ServeAdminAPI(config.AdminPort, config)
	log.Infof("admin API listening on :%d", config.AdminPort)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("admin API shutdown")
	}

	configuration.StopAllServers()
	return nil
}
