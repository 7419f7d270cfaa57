package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <conversation-id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(args[0], args[1])
		},
	}
	return cmd
}

func runRename(id, title string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpdateConversationTitle(id, title); err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}

	fmt.Printf("✓ Renamed conversation %s\n", id)
	return nil
}
