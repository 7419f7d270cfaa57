package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDeleteCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Long:  `Delete a conversation and all its messages, including their search index entries.`,
		Example: `  # Delete with confirmation
  assistant delete 3f1c9a2e-...

  # Delete without confirmation prompt
  assistant delete 3f1c9a2e-... --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(args[0], confirm)
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Skip confirmation prompt")

	return cmd
}

func runDelete(id string, skipConfirm bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if !skipConfirm {
		conv, err := store.GetConversation(id)
		if err != nil {
			return err
		}
		title := id
		if conv != nil {
			title = conv.Title
		}
		fmt.Printf("Delete conversation '%s'? [y/N]: ", title)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteConversation(id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	fmt.Printf("✓ Deleted conversation %s\n", id)
	return nil
}
