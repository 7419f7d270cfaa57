package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medlocal/assistant/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConversations(t *testing.T) {
	store := newTestStore(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		conv, err := store.CreateConversation("Visita di controllo")
		if err != nil {
			t.Fatalf("Failed to create conversation: %v", err)
		}
		if conv.ID == "" {
			t.Error("Conversation ID should be set after create")
		}

		retrieved, err := store.GetConversation(conv.ID)
		if err != nil {
			t.Fatalf("Failed to get conversation: %v", err)
		}
		if retrieved == nil {
			t.Fatal("Conversation should exist")
		}
		if retrieved.Title != "Visita di controllo" {
			t.Errorf("Title mismatch: got %s", retrieved.Title)
		}
		if retrieved.MessageCount != 0 {
			t.Errorf("New conversation should have 0 messages, got %d", retrieved.MessageCount)
		}
	})

	t.Run("GetAbsentIsNotError", func(t *testing.T) {
		conv, err := store.GetConversation("no-such-id")
		if err != nil {
			t.Fatalf("Absent conversation should not error: %v", err)
		}
		if conv != nil {
			t.Error("Absent conversation should be nil")
		}
	})

	t.Run("DefaultTitle", func(t *testing.T) {
		conv, err := store.CreateConversation("")
		if err != nil {
			t.Fatalf("Failed to create conversation: %v", err)
		}
		if !strings.HasPrefix(conv.Title, "Conversazione ") {
			t.Errorf("Expected date-stamped default title, got %q", conv.Title)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		conv, _ := store.CreateConversation("Vecchio titolo")

		if err := store.UpdateConversationTitle(conv.ID, "Nuovo titolo"); err != nil {
			t.Fatalf("Failed to rename: %v", err)
		}

		retrieved, _ := store.GetConversation(conv.ID)
		if retrieved.Title != "Nuovo titolo" {
			t.Errorf("Title not updated: got %s", retrieved.Title)
		}
		if !retrieved.UpdatedAt.After(conv.UpdatedAt) {
			t.Error("Rename should touch the updated timestamp")
		}
	})

	t.Run("RenameMissingIsNotFound", func(t *testing.T) {
		err := store.UpdateConversationTitle("no-such-id", "Titolo")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestMessages(t *testing.T) {
	store := newTestStore(t)

	conv, err := store.CreateConversation("Sintomi")
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	t.Run("SaveAndGetOrdered", func(t *testing.T) {
		contents := []string{"Ho mal di testa", "Da quanto tempo?", "Da ieri sera"}
		roles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser}

		for i := range contents {
			model := ""
			if roles[i] == models.RoleAssistant {
				model = "medgemma"
			}
			if _, err := store.SaveMessage(conv.ID, roles[i], contents[i], model); err != nil {
				t.Fatalf("Failed to save message: %v", err)
			}
		}

		messages, err := store.GetMessages(conv.ID, 0)
		if err != nil {
			t.Fatalf("Failed to get messages: %v", err)
		}
		if len(messages) != 3 {
			t.Fatalf("Expected 3 messages, got %d", len(messages))
		}

		for i, msg := range messages {
			if msg.Content != contents[i] {
				t.Errorf("Message %d out of order: got %q, want %q", i, msg.Content, contents[i])
			}
			if i > 0 && msg.Timestamp.Before(messages[i-1].Timestamp) {
				t.Errorf("Message %d timestamp went backwards", i)
			}
		}

		if messages[1].ModelUsed != "medgemma" {
			t.Errorf("Assistant message should record its model, got %q", messages[1].ModelUsed)
		}
		if messages[0].ModelUsed != "" {
			t.Errorf("User message should not record a model, got %q", messages[0].ModelUsed)
		}
	})

	t.Run("SaveTouchesConversation", func(t *testing.T) {
		before, _ := store.GetConversation(conv.ID)
		if _, err := store.SaveMessage(conv.ID, models.RoleUser, "Altro messaggio", ""); err != nil {
			t.Fatalf("Failed to save message: %v", err)
		}
		after, _ := store.GetConversation(conv.ID)
		if after.UpdatedAt.Before(before.UpdatedAt) {
			t.Error("Saving a message should touch the conversation timestamp")
		}
		if after.MessageCount != before.MessageCount+1 {
			t.Errorf("Message count not incremented: %d -> %d", before.MessageCount, after.MessageCount)
		}
	})

	t.Run("RecentMessages", func(t *testing.T) {
		recent, err := store.RecentMessages(conv.ID, 2)
		if err != nil {
			t.Fatalf("Failed to get recent messages: %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("Expected 2 recent messages, got %d", len(recent))
		}
		if recent[0].Timestamp.After(recent[1].Timestamp) {
			t.Error("Recent messages should still be in ascending order")
		}
		if recent[1].Content != "Altro messaggio" {
			t.Errorf("Expected the latest message last, got %q", recent[1].Content)
		}
	})

	t.Run("InvalidRole", func(t *testing.T) {
		_, err := store.SaveMessage(conv.ID, "robot", "ciao", "")
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("Expected ErrInvalidRole, got %v", err)
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		_, err := store.SaveMessage(conv.ID, models.RoleUser, "   ", "")
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Expected ErrEmptyContent, got %v", err)
		}
	})

	t.Run("MissingConversation", func(t *testing.T) {
		_, err := store.SaveMessage("no-such-id", models.RoleUser, "ciao", "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestListOrdering(t *testing.T) {
	store := newTestStore(t)

	older, _ := store.CreateConversation("Prima")
	newer, _ := store.CreateConversation("Seconda")

	// Appending to the older conversation must move it to the front.
	if _, err := store.SaveMessage(older.ID, models.RoleUser, "Rieccomi", ""); err != nil {
		t.Fatalf("Failed to save message: %v", err)
	}

	conversations, err := store.ListConversations(0)
	if err != nil {
		t.Fatalf("Failed to list conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ID != older.ID {
		t.Errorf("Conversation with newest message should be first, got %s", conversations[0].Title)
	}
	if conversations[0].MessageCount != 1 {
		t.Errorf("Expected message count 1, got %d", conversations[0].MessageCount)
	}
	if conversations[1].ID != newer.ID || conversations[1].MessageCount != 0 {
		t.Errorf("Empty conversation should list with count 0")
	}
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)

	conv, _ := store.CreateConversation("Febbre")
	store.SaveMessage(conv.ID, models.RoleUser, "Il paracetamolo abbassa la febbre?", "")
	store.SaveMessage(conv.ID, models.RoleAssistant, "Sì, il paracetamolo è un antipiretico.", "medgemma")

	other, _ := store.CreateConversation("Altro")
	store.SaveMessage(other.ID, models.RoleUser, "Che tempo fa oggi?", "")

	t.Run("MatchWithSnippet", func(t *testing.T) {
		results, err := store.SearchConversations("paracetamolo")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Expected 1 result (deduplicated), got %d", len(results))
		}
		if results[0].Conversation.ID != conv.ID {
			t.Errorf("Wrong conversation matched")
		}
		if !strings.Contains(results[0].Snippet, "<mark>") {
			t.Errorf("Snippet should contain a highlight, got %q", results[0].Snippet)
		}
	})

	t.Run("NoMatch", func(t *testing.T) {
		results, err := store.SearchConversations("inesistente")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Expected no results, got %d", len(results))
		}
	})

	t.Run("MalformedQuery", func(t *testing.T) {
		_, err := store.SearchConversations(`"unbalanced`)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Expected ErrInvalidQuery, got %v", err)
		}
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		_, err := store.SearchConversations("  ")
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Expected ErrInvalidQuery, got %v", err)
		}
	})
}

func TestDeleteCascade(t *testing.T) {
	store := newTestStore(t)

	conv, _ := store.CreateConversation("Da cancellare")
	store.SaveMessage(conv.ID, models.RoleUser, "Parlami della tachipirina", "")
	store.SetMetadata(conv.ID, "origin", "test")

	if err := store.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	if c, _ := store.GetConversation(conv.ID); c != nil {
		t.Error("Conversation should be gone")
	}

	messages, _ := store.GetMessages(conv.ID, 0)
	if len(messages) != 0 {
		t.Errorf("Messages should cascade, found %d", len(messages))
	}

	results, err := store.SearchConversations("tachipirina")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search index entries should be gone, found %d", len(results))
	}

	meta, _ := store.AllMetadata(conv.ID)
	if len(meta) != 0 {
		t.Errorf("Metadata should cascade, found %d entries", len(meta))
	}

	// Deleting again, or deleting an id that never existed, is a no-op.
	if err := store.DeleteConversation(conv.ID); err != nil {
		t.Errorf("Repeated delete should not error: %v", err)
	}
	if err := store.DeleteConversation("never-existed"); err != nil {
		t.Errorf("Deleting an unknown id should not error: %v", err)
	}
}

func TestMetadata(t *testing.T) {
	store := newTestStore(t)

	conv, _ := store.CreateConversation("Con metadata")

	if err := store.SetMetadata(conv.ID, "lingua", "it"); err != nil {
		t.Fatalf("Failed to set metadata: %v", err)
	}
	if err := store.SetMetadata(conv.ID, "lingua", "en"); err != nil {
		t.Fatalf("Failed to overwrite metadata: %v", err)
	}
	store.SetMetadata(conv.ID, "origine", "cli")

	value, err := store.GetMetadata(conv.ID, "lingua")
	if err != nil {
		t.Fatalf("Failed to get metadata: %v", err)
	}
	if value != "en" {
		t.Errorf("Expected overwritten value, got %q", value)
	}

	if value, _ := store.GetMetadata(conv.ID, "assente"); value != "" {
		t.Errorf("Unset key should return empty, got %q", value)
	}

	all, err := store.AllMetadata(conv.ID)
	if err != nil {
		t.Fatalf("Failed to get all metadata: %v", err)
	}
	if len(all) != 2 || all["origine"] != "cli" {
		t.Errorf("Unexpected metadata map: %v", all)
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)

	conv, _ := store.CreateConversation("Statistiche")
	store.SaveMessage(conv.ID, models.RoleUser, "Domanda", "")
	store.SaveMessage(conv.ID, models.RoleAssistant, "Risposta", "medgemma")
	store.SaveMessage(conv.ID, models.RoleAssistant, "Analisi", "txgemma")

	conversations, messages, modelUsage, err := store.Counts()
	if err != nil {
		t.Fatalf("Failed to get counts: %v", err)
	}
	if conversations != 1 {
		t.Errorf("Expected 1 conversation, got %d", conversations)
	}
	if messages != 3 {
		t.Errorf("Expected 3 messages, got %d", messages)
	}
	if modelUsage["medgemma"] != 1 || modelUsage["txgemma"] != 1 {
		t.Errorf("Unexpected model usage: %v", modelUsage)
	}
}
