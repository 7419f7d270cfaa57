package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medlocal/assistant/internal/manager"
	"github.com/medlocal/assistant/internal/models"
	"github.com/medlocal/assistant/internal/router"
	"github.com/medlocal/assistant/internal/storage"
	"github.com/medlocal/assistant/internal/supervisor"
)

func NewChatCommand() *cobra.Command {
	var conversationID string
	var title string
	var attachPath string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message and print the routed reply",
		Long: `Send one message through the query router. Starts the enabled backends,
routes the message, persists both sides of the exchange and shuts the
backends down again.`,
		Example: `  # Ask the default text backend
  assistant chat "Quali sono i sintomi della bronchite?"

  # Continue an existing conversation
  assistant chat --conversation 3f1c... "E per la polmonite?"

  # Attach an image
  assistant chat --attach scan.png "Cosa mostra questa radiografia?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			return runChat(message, conversationID, title, attachPath)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Existing conversation ID to append to")
	cmd.Flags().StringVar(&title, "title", "", "Title for a newly created conversation")
	cmd.Flags().StringVar(&attachPath, "attach", "", "File to attach (media type inferred from extension)")

	return cmd
}

func runChat(message, conversationID, title, attachPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if conversationID == "" {
		conv, err := store.CreateConversation(title)
		if err != nil {
			return err
		}
		conversationID = conv.ID
		fmt.Printf("Created conversation %s (%s)\n\n", conv.ID, conv.Title)
	}

	var attachments []models.Attachment
	if attachPath != "" {
		att, err := loadAttachment(attachPath)
		if err != nil {
			return err
		}
		attachments = append(attachments, att)
	}

	sup := supervisor.New(cfg)
	if err := sup.Initialize(context.Background()); err != nil {
		return err
	}
	defer sup.Shutdown()

	m := manager.New(store, sup, router.Default(), cfg.Timeouts)

	result, err := m.RouteQuery(context.Background(), conversationID, message, attachments)
	if err != nil {
		return err
	}

	fmt.Printf("[%s]\n\n%s\n\n%s\n", result.ModelUsed, result.Content, result.Disclaimer)
	return nil
}

func loadAttachment(path string) (models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	return models.Attachment{
		Type: mediaType,
		Data: base64.StdEncoding.EncodeToString(data),
	}, nil
}
