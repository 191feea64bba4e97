package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/types"
)

// NewReadCmd creates the read command.
func NewReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <msgid>...",
		Short: "Mark messages read (or unread with --unread)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			isThread, _ := cmd.Flags().GetBool("thread")
			unread, _ := cmd.Flags().GetBool("unread")
			if err := cctx.WithStore(); err != nil {
				return writeCommandError(cmd, err)
			}
			if !unread {
				if err := cctx.WithClient(); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			status := types.ReadStatusFullyRead
			if unread {
				status = types.ReadStatusNone
			}
			results := make(map[string]types.ReadStatus, len(args))
			for _, arg := range args {
				id := strings.TrimPrefix(strings.TrimSpace(arg), "#")
				if id == "" {
					continue
				}
				if !unread {
					if err := cctx.Client.MarkRead(cmd.Context(), id); err != nil {
						return writeCommandError(cmd, err)
					}
				}
				if err := cctx.Store.SetReadStatus(id, isThread, status); err != nil {
					return writeCommandError(cmd, err)
				}
				results[id] = status
			}

			if cctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), results)
			}
			verb := "read"
			if unread {
				verb = "unread"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d %s %s\n", len(results), pluralize(len(results), "message", "messages"), verb)
			return nil
		},
	}
	cmd.Flags().Bool("thread", false, "ids are thread replies")
	cmd.Flags().Bool("unread", false, "reset local read state instead")
	return cmd
}
