package storage

// Database schema queries
const (
	queryCreateConversationsTable = `CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`

	queryCreateMessagesTable = `CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('user', 'assistant', 'system')),
		content TEXT NOT NULL,
		model_used TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	)`

	queryCreateMetadataTable = `CREATE TABLE IF NOT EXISTS session_metadata (
		conversation_id TEXT,
		key TEXT,
		value TEXT,
		PRIMARY KEY (conversation_id, key),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	)`

	queryCreateIndexMessagesConversation = `CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp)`
	queryCreateIndexConversationsUpdated = `CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC)`

	queryCreateMessagesFTS = `CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		content,
		content=messages,
		content_rowid=rowid
	)`

	queryCreateMessagesInsertTrigger = `CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages
	BEGIN
		INSERT INTO messages_fts(rowid, content) VALUES (new.rowid, new.content);
	END`

	queryCreateMessagesDeleteTrigger = `CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages
	BEGIN
		DELETE FROM messages_fts WHERE rowid = old.rowid;
	END`

	queryCreateMessagesUpdateTrigger = `CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages
	BEGIN
		UPDATE messages_fts SET content = new.content WHERE rowid = new.rowid;
	END`

	queryInsertConversation = `INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`

	querySelectConversation = `SELECT c.id, c.title, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c WHERE c.id = ?`

	queryListConversations = `SELECT
		c.id, c.title, c.created_at, c.updated_at,
		COUNT(m.id) AS message_count
		FROM conversations c
		LEFT JOIN messages m ON c.id = m.conversation_id
		GROUP BY c.id
		ORDER BY c.updated_at DESC
		LIMIT ?`

	queryDeleteConversation = `DELETE FROM conversations WHERE id = ?`

	queryUpdateConversationTitle = `UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`

	queryConversationExists = `SELECT 1 FROM conversations WHERE id = ?`

	queryInsertMessage = `INSERT INTO messages (id, conversation_id, role, content, model_used, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryTouchConversation = `UPDATE conversations SET updated_at = ? WHERE id = ?`

	querySelectMessages = `SELECT id, conversation_id, role, content, model_used, timestamp
		FROM messages WHERE conversation_id = ?
		ORDER BY timestamp, rowid
		LIMIT ?`

	querySelectRecentMessages = `SELECT id, conversation_id, role, content, model_used, timestamp
		FROM (
			SELECT id, conversation_id, role, content, model_used, timestamp, rowid AS rid
			FROM messages WHERE conversation_id = ?
			ORDER BY timestamp DESC, rowid DESC
			LIMIT ?
		)
		ORDER BY timestamp, rid`

	querySearchConversations = `SELECT
		c.id, c.title, c.created_at, c.updated_at,
		snippet(messages_fts, 0, '<mark>', '</mark>', '...', 30) AS snippet
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN conversations c ON m.conversation_id = c.id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`

	queryCountConversations = `SELECT COUNT(*) FROM conversations`
	queryCountMessages      = `SELECT COUNT(*) FROM messages`
	queryGroupByModel       = `SELECT model_used, COUNT(*) FROM messages WHERE model_used IS NOT NULL GROUP BY model_used`

	queryUpsertMetadata = `INSERT INTO session_metadata (conversation_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id, key) DO UPDATE SET value = excluded.value`
	querySelectMetadata    = `SELECT value FROM session_metadata WHERE conversation_id = ? AND key = ?`
	querySelectAllMetadata = `SELECT key, value FROM session_metadata WHERE conversation_id = ?`
)
