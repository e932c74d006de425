package main

import (
	"io"

	"github.com/ChamsBouzaiene/localchat/internal/render"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print every stored record in chronological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepareRuntimeEnv(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer env.Close()

			records, err := env.Store.ListAll(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "Error checking history")
			}
			out, err := render.FormatHistory(records, format)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", render.FormatText, "output format: text, json, yaml")
	return cmd
}
