package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		Long:  `List conversations ordered by last activity, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of conversations to list")

	return cmd
}

func runList(limit int) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	conversations, err := store.ListConversations(limit)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	fmt.Printf("Recent conversations:\n\n")

	for _, conv := range conversations {
		fmt.Printf("[%s] %s\n", conv.ID, conv.Title)
		fmt.Printf("  %d message(s) | updated %s\n\n", conv.MessageCount, conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}
