// Command reflectionsbot serves the Discord daily-reflections bot and its
// companion jobs.
//
//	reflectionsbot serve           HTTP server (interactions, scheduled trigger, admin API)
//	reflectionsbot worker          asynq worker and scheduler
//	reflectionsbot backfill        import every calendar day into the cache
//	reflectionsbot deliver [date]  post one day's reflection to every webhook
//	reflectionsbot show [date]     print the embed that would be posted
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/daily-reflections-bot/internal/config"
	"github.com/tbourn/daily-reflections-bot/internal/sysutil"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		cfg     config.Config
	)
	root := &cobra.Command{
		Use:           "reflectionsbot",
		Short:         "Discord bot that posts the daily reflection",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is normal in containers.
			_ = godotenv.Load(envFile)
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cfgFn := func() config.Config { return cfg }
	root.AddCommand(
		serveCmd(cfgFn),
		workerCmd(cfgFn),
		backfillCmd(cfgFn),
		deliverCmd(cfgFn),
		showCmd(cfgFn),
	)
	return root
}
