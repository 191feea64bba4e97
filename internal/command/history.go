package command

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/types"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [channel]",
		Short: "Print one page of channel history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			channel, err := cctx.RequireChannel(args)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := cctx.WithClient(); err != nil {
				return writeCommandError(cmd, err)
			}

			q := types.PageQuery{ChannelID: channel}
			q.Limit, _ = cmd.Flags().GetInt("limit")
			q.BeforeID, _ = cmd.Flags().GetString("before")
			q.AfterID, _ = cmd.Flags().GetString("after")
			q.ParentID, _ = cmd.Flags().GetString("thread")
			q.BeforeID = strings.TrimPrefix(q.BeforeID, "#")
			q.AfterID = strings.TrimPrefix(q.AfterID, "#")
			q.ParentID = strings.TrimPrefix(q.ParentID, "#")
			if q.BeforeID != "" && q.AfterID != "" {
				return writeCommandError(cmd, fmt.Errorf("--before and --after are mutually exclusive"))
			}
			if q.Limit <= 0 {
				q.Limit = cctx.Config.Feed.PageSize
			}

			page, err := cctx.Client.FetchPage(cmd.Context(), q)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			sort.SliceStable(page, func(i, j int) bool { return page[i].CreatedAt < page[j].CreatedAt })

			if cctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), page)
			}
			out := cmd.OutOrStdout()
			if len(page) == 0 {
				fmt.Fprintln(out, "No messages")
				return nil
			}
			for _, rec := range page {
				fmt.Fprintln(out, formatMessage(rec, time.Local))
			}
			if len(page) < q.Limit && q.AfterID == "" {
				fmt.Fprintln(out, "-- beginning of #"+channel)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "page size (default feed.page_size)")
	cmd.Flags().String("before", "", "only messages older than this id")
	cmd.Flags().String("after", "", "only messages newer than this id")
	cmd.Flags().String("thread", "", "list replies under this parent id")
	return cmd
}
