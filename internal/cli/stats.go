package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics",
		Long:  `Display conversation and message totals plus per-backend usage counts.`,
		RunE:  runStats,
	}
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	conversations, messages, modelUsage, err := store.Counts()
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	fmt.Println("Assistant Statistics")
	fmt.Println("====================")
	fmt.Printf("\nTotal Conversations: %d\n", conversations)
	fmt.Printf("Total Messages: %d\n", messages)

	if len(modelUsage) > 0 {
		fmt.Println("\nReplies by Backend:")
		for model, count := range modelUsage {
			fmt.Printf("  %s: %d\n", model, count)
		}
	}

	return nil
}
