package cli

import (
	"github.com/spf13/cobra"

	"github.com/medlocal/assistant/internal/tui"
)

func NewBrowseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse conversations interactively",
		Long:  `Open a two-pane terminal browser over the conversation history.`,
		RunE:  runBrowse,
	}
	return cmd
}

func runBrowse(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return tui.NewBrowser(store).Run()
}
