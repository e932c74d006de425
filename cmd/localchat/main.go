package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configDir string
	envFile   string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "localchat",
		Short:         "Chat with local language models and keep the history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(flags.logLevel)
			if flags.envFile != "" {
				config.LoadDotEnv(flags.envFile)
			} else {
				config.LoadDotEnv()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: <user config dir>/localchat)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file to load (default: .env)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)")

	chatCmd := newChatCmd(flags)
	root.AddCommand(chatCmd, newHistoryCmd(flags), newConfigCmd(flags))
	// chatting is the default action
	root.RunE = chatCmd.RunE
	root.Flags().AddFlagSet(chatCmd.Flags())
	return root
}

func setupLogging(level string) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	setLogLevel(level)
}

func setLogLevel(level string) {
	if level == "" {
		return
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, keeping current")
		return
	}
	zerolog.SetGlobalLevel(l)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// restore default signal handling: a second interrupt exits at once
		<-ctx.Done()
		stop()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("localchat failed")
		stop()
		os.Exit(1)
	}
}
