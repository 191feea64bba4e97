package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/core"
)

// NewPostCmd creates the post command.
func NewPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <message>",
		Short: "Send a message to a channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			channel, err := cctx.RequireChannel(nil)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return writeCommandError(cmd, fmt.Errorf("message is empty"))
			}
			replyTo, _ := cmd.Flags().GetString("reply-to")
			replyTo = strings.TrimPrefix(replyTo, "#")

			if err := cctx.WithClient(); err != nil {
				return writeCommandError(cmd, err)
			}
			rec, err := cctx.Client.SendMessage(cmd.Context(), channel, content, replyTo, core.NewTempID())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if cctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted [%s] to #%s\n", rec.ID, channel)
			return nil
		},
	}
	cmd.Flags().String("reply-to", "", "post as a reply in this message's thread")
	return cmd
}
