package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/medlocal/assistant/internal/models"
)

const (
	defaultListLimit    = 100
	defaultMessageLimit = 100
	searchResultLimit   = 50
)

type SQLiteStore struct {
	writeDB *sql.DB // Single connection for writes
	readDB  *sql.DB // Pool of connections for reads
	dbPath  string
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, ".assistant", "conversations.db")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open write connection (single connection)
	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	writeDB.SetMaxOpenConns(1) // Only one write connection

	readDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(5) // Allow multiple concurrent reads
	readDB.SetMaxIdleConns(5)

	store := &SQLiteStore{
		writeDB: writeDB,
		readDB:  readDB,
		dbPath:  dbPath,
	}

	if err := store.initializeDB(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := store.createTables(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initializeDB() error {
	config := DefaultConfig()
	for _, pragma := range config.pragmas() {
		if _, err := s.writeDB.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) createTables() error {
	queries := []string{
		queryCreateConversationsTable,
		queryCreateMessagesTable,
		queryCreateMetadataTable,
		queryCreateIndexMessagesConversation,
		queryCreateIndexConversationsUpdated,
		queryCreateMessagesFTS,
		queryCreateMessagesInsertTrigger,
		queryCreateMessagesDeleteTrigger,
		queryCreateMessagesUpdateTrigger,
	}

	for _, query := range queries {
		if _, err := s.writeDB.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// CreateConversation writes a new conversation row. An empty title gets
// the date-stamped default the desktop shell shows to Italian users.
func (s *SQLiteStore) CreateConversation(title string) (*models.Conversation, error) {
	now := time.Now().UTC()
	if title == "" {
		title = fmt.Sprintf("Conversazione %s", now.Format("02/01/2006"))
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.writeDB.Exec(queryInsertConversation, conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation looks up a single conversation. An absent id returns
// (nil, nil), not an error.
func (s *SQLiteStore) GetConversation(id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.readDB.QueryRow(querySelectConversation, id).Scan(
		&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt, &conv.MessageCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns conversations ordered by last update,
// newest first, each annotated with its message count.
func (s *SQLiteStore) ListConversations(limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.readDB.Query(queryListConversations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt, &conv.MessageCount); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// DeleteConversation removes a conversation; the schema cascades to its
// messages and metadata, and the FTS triggers clean the index. Deleting
// an absent id is a no-op.
func (s *SQLiteStore) DeleteConversation(id string) error {
	_, err := s.writeDB.Exec(queryDeleteConversation, id)
	return err
}

// UpdateConversationTitle renames a conversation and touches its
// updated timestamp. Renaming a missing conversation is an error.
func (s *SQLiteStore) UpdateConversationTitle(id, title string) error {
	result, err := s.writeDB.Exec(queryUpdateConversationTitle, title, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SaveMessage appends an immutable message and touches the parent
// conversation's updated timestamp in the same transaction.
func (s *SQLiteStore) SaveMessage(conversationID string, role models.Role, content, modelUsed string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	tx, err := s.writeDB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(queryConversationExists, conversationID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, conversationID)
		}
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ModelUsed:      modelUsed,
		Timestamp:      time.Now().UTC(),
	}

	var model sql.NullString
	if modelUsed != "" {
		model = sql.NullString{String: modelUsed, Valid: true}
	}

	if _, err := tx.Exec(queryInsertMessage, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, model, msg.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if _, err := tx.Exec(queryTouchConversation, msg.Timestamp, conversationID); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessages returns a conversation's messages in ascending timestamp
// order, ties broken by insertion order.
func (s *SQLiteStore) GetMessages(conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	return s.queryMessages(querySelectMessages, conversationID, limit)
}

// RecentMessages returns the latest n messages, still in ascending
// order, for use as exchange context.
func (s *SQLiteStore) RecentMessages(conversationID string, n int) ([]models.Message, error) {
	return s.queryMessages(querySelectRecentMessages, conversationID, n)
}

func (s *SQLiteStore) queryMessages(query, conversationID string, limit int) ([]models.Message, error) {
	rows, err := s.readDB.Query(query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var role string
		var model sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &model, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Role = models.Role(role)
		msg.ModelUsed = model.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SearchConversations runs a full-text match over message content and
// returns each matching conversation once, best-ranked snippet first.
func (s *SQLiteStore) SearchConversations(query string) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	rows, err := s.readDB.Query(querySearchConversations, query, searchResultLimit)
	if err != nil {
		// FTS5 reports syntax errors at query time; a malformed query
		// must not read as a storage fault.
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var results []models.SearchResult
	for rows.Next() {
		var result models.SearchResult
		if err := rows.Scan(
			&result.Conversation.ID, &result.Conversation.Title,
			&result.Conversation.CreatedAt, &result.Conversation.UpdatedAt,
			&result.Snippet,
		); err != nil {
			return nil, err
		}
		// Rows arrive rank-ordered, so the first hit per conversation
		// carries its best snippet.
		if seen[result.Conversation.ID] {
			continue
		}
		seen[result.Conversation.ID] = true
		results = append(results, result)
	}
	return results, rows.Err()
}

// Counts returns the aggregate totals the usage statistics are built from.
func (s *SQLiteStore) Counts() (conversations, messages int, modelUsage map[string]int, err error) {
	if err = s.readDB.QueryRow(queryCountConversations).Scan(&conversations); err != nil {
		return
	}
	if err = s.readDB.QueryRow(queryCountMessages).Scan(&messages); err != nil {
		return
	}

	modelUsage = make(map[string]int)
	rows, err := s.readDB.Query(queryGroupByModel)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var count int
		if err = rows.Scan(&model, &count); err != nil {
			return
		}
		modelUsage[model] = count
	}
	err = rows.Err()
	return
}

// SetMetadata stores a per-conversation key/value pair, replacing any
// previous value for the key.
func (s *SQLiteStore) SetMetadata(conversationID, key, value string) error {
	_, err := s.writeDB.Exec(queryUpsertMetadata, conversationID, key, value)
	return err
}

// GetMetadata returns the value for a key, or "" when unset.
func (s *SQLiteStore) GetMetadata(conversationID, key string) (string, error) {
	var value string
	err := s.readDB.QueryRow(querySelectMetadata, conversationID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// AllMetadata returns every key/value pair attached to a conversation.
func (s *SQLiteStore) AllMetadata(conversationID string) (map[string]string, error) {
	rows, err := s.readDB.Query(querySelectAllMetadata, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

func (s *SQLiteStore) Close() error {
	var errs []error

	// Run PRAGMA optimize before closing for better long-term performance
	if _, err := s.writeDB.Exec("PRAGMA optimize"); err != nil {
		errs = append(errs, fmt.Errorf("failed to optimize: %w", err))
	}

	if err := s.readDB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close read db: %w", err))
	}

	if err := s.writeDB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close write db: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
