package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <msgid>",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			id := strings.TrimPrefix(strings.TrimSpace(args[0]), "#")
			if err := cctx.WithClient(); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := cctx.WithStore(); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := cctx.Client.DeleteMessage(cmd.Context(), id); err != nil {
				return writeCommandError(cmd, err)
			}
			// Remembered so a late push echo or cached page cannot bring it back.
			if err := cctx.Store.RecordDeleted(id); err != nil {
				cctx.Logger.Warn("record_deleted_failed", "id", id, "error", err)
			}

			if cctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "deleted": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted [%s]\n", id)
			return nil
		},
	}
	return cmd
}
