package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "frayfeed"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "frayfeed - terminal client for a live chat feed",
		Long:          "frayfeed follows a chat channel: it pages history, applies live push events and keeps read state locally.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "config file (default ~/.config/frayfeed/config.yaml)")
	cmd.PersistentFlags().String("in", "", "channel to operate in")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		NewChatCmd(),
		NewTailCmd(),
		NewHistoryCmd(),
		NewPostCmd(),
		NewRmCmd(),
		NewReadCmd(),
		NewThreadsCmd(),
		NewEmitCmd(),
		NewLoginCmd(),
		NewConfigCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
