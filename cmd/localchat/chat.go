package main

import (
	"context"
	"os"

	"github.com/ChamsBouzaiene/localchat/internal/chat"
	"github.com/ChamsBouzaiene/localchat/internal/providers"
	"github.com/ChamsBouzaiene/localchat/internal/render"
	"github.com/ChamsBouzaiene/localchat/internal/upload"
	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type chatFlags struct {
	model    string
	markdown bool
	noColor  bool
	inbox    string
}

func newChatCmd(root *rootFlags) *cobra.Command {
	flags := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model to start with (default: from config)")
	cmd.Flags().BoolVar(&flags.markdown, "markdown", false, "render answers as markdown once complete")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&flags.inbox, "inbox", "", "directory watched for .txt uploads")
	return cmd
}

func runChat(cmd *cobra.Command, root *rootFlags, flags *chatFlags) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx, root)
	if err != nil {
		return err
	}
	defer env.Close()
	cfg := env.Config

	agg, client, err := newAggregator(cfg)
	if err != nil {
		return err
	}

	opts := render.TerminalOptions{Markdown: cfg.Markdown || flags.markdown}
	if flags.noColor {
		off := false
		opts.Color = &off
	}
	term := render.NewTerminal(cmd.OutOrStdout(), opts)

	model := cfg.Model
	if flags.model != "" {
		model = flags.model
	}
	ctrl := chat.NewController(agg, env.Store, term, chat.Options{
		Model:   model,
		Models:  cfg.Models,
		Session: env.Session,
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warn().Err(err).Msg("pending history writes lost")
		}
	}()
	if flags.model != "" {
		if err := ctrl.SetModel(flags.model); err != nil {
			return err
		}
	}

	r := &repl{
		ctrl: ctrl,
		in:   os.Stdin,
		out:  cmd.OutOrStdout(),
		copy: clipboard.WriteAll,
	}
	if lister, ok := client.(providers.ModelLister); ok {
		r.lister = lister
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, gctx := errgroup.WithContext(ctx)

	inboxDir := cfg.InboxDir
	if flags.inbox != "" {
		inboxDir = flags.inbox
	}
	if inboxDir != "" {
		inbox, err := upload.NewInbox(inboxDir, func(files []upload.File) {
			ctrl.Upload(gctx, files)
		})
		if err != nil {
			return errors.Wrap(err, "inbox")
		}
		eg.Go(func() error { return inbox.Run(gctx) })
	}

	eg.Go(func() error {
		defer cancel()
		return r.run(gctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
