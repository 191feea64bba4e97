package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewThreadsCmd creates the threads command.
func NewThreadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads <parent-id>...",
		Short: "Show reply summaries for thread parents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			if err := cctx.WithClient(); err != nil {
				return writeCommandError(cmd, err)
			}
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				if id := strings.TrimPrefix(strings.TrimSpace(arg), "#"); id != "" {
					ids = append(ids, id)
				}
			}
			summaries, err := cctx.Client.ThreadSummaries(cmd.Context(), ids)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if cctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), summaries)
			}

			sort.Strings(ids)
			out := cmd.OutOrStdout()
			for _, id := range ids {
				s, ok := summaries[id]
				if !ok {
					fmt.Fprintf(out, "%s: no replies\n", id)
					continue
				}
				fmt.Fprintln(out, formatSummary(id, s))
			}
			return nil
		},
	}
	return cmd
}
