package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/types"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	if isStoreError(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: the local state store looks damaged. Remove it or set store.driver: memory.")
	}
	return err
}

// isStoreError checks for SQLite schema or corruption errors.
func isStoreError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "malformed")
}

// formatMessage renders one record as a single line.
func formatMessage(rec types.MessageRecord, loc *time.Location) string {
	author := rec.AuthorName
	if author == "" {
		author = rec.AuthorID
	}
	body := strings.ReplaceAll(rec.Content, "\n", " ")
	line := fmt.Sprintf("%s @%s: %s [%s]", rec.Time().In(loc).Format("Jan 02 15:04"), author, body, rec.ID)
	if rec.ParentID != "" {
		line = "  ↳ " + line
	}
	if rec.ThreadCount > 0 {
		line += fmt.Sprintf(" (%d %s)", rec.ThreadCount, pluralize(rec.ThreadCount, "reply", "replies"))
	}
	return line
}

func formatSummary(parentID string, s types.ThreadSummary) string {
	line := fmt.Sprintf("%s: %d %s", parentID, s.Total, pluralize(s.Total, "reply", "replies"))
	if s.Unread > 0 {
		line += fmt.Sprintf(", %d unread", s.Unread)
	}
	if s.LatestReply != nil {
		line += fmt.Sprintf(", last from @%s %s", s.LatestReply.AuthorName, humanize.Time(time.UnixMilli(s.LatestReply.CreatedAt)))
	}
	return line
}

func printJSON(out io.Writer, value any) error {
	return json.NewEncoder(out).Encode(value)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
