// Package manager composes the store, supervisor and router into the
// query-handling engine behind the assistant.
package manager

import (
	"context"
	"sync"

	"github.com/medlocal/assistant/internal/backend"
	"github.com/medlocal/assistant/internal/config"
	"github.com/medlocal/assistant/internal/logger"
	"github.com/medlocal/assistant/internal/models"
	"github.com/medlocal/assistant/internal/router"
	"github.com/medlocal/assistant/internal/storage"
	"github.com/medlocal/assistant/internal/supervisor"
	"github.com/sirupsen/logrus"
)

// Disclaimer accompanies every successful response, unconditionally.
const Disclaimer = "⚠️ DISCLAIMER: Questo sistema è SOLO educativo. NON sostituisce il parere medico. Per emergenze, contattare il 118."

const historyLimit = 10

// QueryResult is what a routed query returns to the caller.
type QueryResult struct {
	Content    string `json:"content"`
	ModelUsed  string `json:"model_used"`
	Disclaimer string `json:"disclaimer"`
}

type Manager struct {
	store    *storage.SQLiteStore
	sup      *supervisor.Supervisor
	router   *router.Router
	timeouts config.Timeouts

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

func New(store *storage.SQLiteStore, sup *supervisor.Supervisor, rtr *router.Router, timeouts config.Timeouts) *Manager {
	return &Manager{
		store:     store,
		sup:       sup,
		router:    rtr,
		timeouts:  timeouts,
		convLocks: make(map[string]*sync.Mutex),
	}
}

// convLock serializes writes within one conversation so a reply can
// never land before the user message that caused it. Different
// conversations proceed in parallel.
func (m *Manager) convLock(conversationID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, exists := m.convLocks[conversationID]
	if !exists {
		lock = &sync.Mutex{}
		m.convLocks[conversationID] = lock
	}
	return lock
}

// RouteQuery picks a backend for the message, persists the user
// message, performs the exchange and persists the reply. If the target
// backend is not live nothing is written; if the exchange fails the
// user message stays so the record remains truthful.
func (m *Manager) RouteQuery(ctx context.Context, conversationID, message string, attachments []models.Attachment) (*QueryResult, error) {
	target := m.router.Select(message, attachments)
	logger.Log.WithFields(logrus.Fields{
		"conversation": conversationID,
		"backend":      target,
	}).Debug("routing query")

	if !m.sup.IsLive(target) {
		return nil, &supervisor.UnavailableError{Backend: target}
	}

	lock := m.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.store.SaveMessage(conversationID, models.RoleUser, message, ""); err != nil {
		return nil, err
	}

	history, err := m.store.RecentMessages(conversationID, historyLimit)
	if err != nil {
		return nil, err
	}

	conn, err := m.sup.Conn(target)
	if err != nil {
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, m.timeouts.ExchangeTimeout())
	defer cancel()

	resp, err := conn.Exchange(exchangeCtx, &backend.Request{
		Message:     message,
		History:     history,
		Attachments: attachments,
	})
	if err != nil {
		return nil, err
	}

	if _, err := m.store.SaveMessage(conversationID, models.RoleAssistant, resp.Content, target); err != nil {
		return nil, err
	}

	return &QueryResult{
		Content:    resp.Content,
		ModelUsed:  target,
		Disclaimer: Disclaimer,
	}, nil
}

// UsageStats recomputes the aggregate counters on every call so crashed
// backends drop out of the active list immediately.
func (m *Manager) UsageStats() (*models.UsageStats, error) {
	conversations, messages, modelUsage, err := m.store.Counts()
	if err != nil {
		return nil, err
	}
	return &models.UsageStats{
		TotalConversations: conversations,
		TotalMessages:      messages,
		ModelUsage:         modelUsage,
		ActiveServers:      m.sup.Live(),
	}, nil
}
