package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/push"
	"github.com/adamavenir/frayfeed/internal/types"
)

// NewEmitCmd creates the emit command, which appends a push event to the
// JSONL file a file push source tails.
func NewEmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit <type> <msgid> [content]",
		Short: "Append a push event to the push file",
		Long: "Append a push event to the push file.\n\n" +
			"Types: message_posted, message_deleted, thread_message_posted, thread_message_deleted.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = cctx.Config.Push.File
			}
			if path == "" {
				return writeCommandError(cmd, fmt.Errorf("no push file; pass --file or set push.file"))
			}
			channel, err := cctx.RequireChannel(nil)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			parent, _ := cmd.Flags().GetString("parent")
			author, _ := cmd.Flags().GetString("author")
			if author == "" {
				author = cctx.Config.UserName
			}

			ev, err := buildEvent(args[0], args[1], strings.Join(args[2:], " "), channel, parent, author, time.Now())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := push.AppendEvent(path, ev); err != nil {
				return writeCommandError(cmd, err)
			}
			if cctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), ev)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appended %s [%s] to %s\n", ev.Type, ev.ID, path)
			return nil
		},
	}
	cmd.Flags().String("file", "", "push file (default push.file)")
	cmd.Flags().String("parent", "", "parent id for thread events")
	cmd.Flags().String("author", "", "author name (default user_name)")
	return cmd
}

// buildEvent assembles an envelope and round-trips it through the decoder so
// only events a push source would accept are written.
func buildEvent(kind, id, content, channel, parent, author string, now time.Time) (types.PushEvent, error) {
	ev := types.PushEvent{Type: types.EventType(kind), ID: strings.TrimPrefix(id, "#"), ChannelID: channel}
	if !ev.IsDelete() {
		if strings.TrimSpace(content) == "" {
			return ev, fmt.Errorf("%s needs content", kind)
		}
		ev.Payload = &types.MessageRecord{
			ID:         ev.ID,
			ChannelID:  channel,
			AuthorID:   author,
			AuthorName: author,
			CreatedAt:  now.UnixMilli(),
			Content:    content,
			ParentID:   strings.TrimPrefix(parent, "#"),
		}
	}
	data, err := push.Encode(ev)
	if err != nil {
		return ev, err
	}
	return push.Decode(data)
}
