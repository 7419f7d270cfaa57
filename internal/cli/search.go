package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversations",
		Long:  `Full-text search over message content across all conversations.`,
		Example: `  # Find conversations mentioning bronchitis
  assistant search bronchite

  # Phrase search
  assistant search '"effetti collaterali"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "))
		},
	}
	return cmd
}

func runSearch(query string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.SearchConversations(query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d result(s) for '%s':\n\n", len(results), query)

	for i, result := range results {
		fmt.Printf("%d. [%s] %s\n", i+1, result.Conversation.ID, result.Conversation.Title)
		fmt.Printf("   %s\n", result.Conversation.UpdatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("   %s\n\n", result.Snippet)
	}

	return nil
}
