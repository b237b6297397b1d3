// Package session tracks the domain-scoped browsing session, the fields
// already used or rejected within it, the per-document usage log, and the
// signature-keyed cache of field-mapping results.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// Session is the in-memory state for one domain. It is replaced, not
// freed, when the domain changes.
type Session struct {
	SessionID   string   `json:"sessionId"`
	Domain      string   `json:"domain"`
	PageHistory []string `json:"pageHistory"`

	usedFieldIDs     map[string]bool
	rejectedFieldIDs map[string]bool
}

// Store owns the active session and the per-session usage logs. All
// access is mutex-serialized: the host may dispatch events from multiple
// goroutines.
type Store struct {
	mu       sync.Mutex
	current  *Session
	usageLog map[string][]store.UsedField
	manifest *store.ManifestStore
}

// NewStore creates a session store. manifest may be nil when document
// usage tracking is not wired (tests, headless hosts).
func NewStore(manifest *store.ManifestStore) *Store {
	return &Store{
		usageLog: map[string][]store.UsedField{},
		manifest: manifest,
	}
}

// EnsureSession returns the active session id for domain, creating a
// fresh session (new id, empty history and suppression sets) when no
// session exists yet or the domain changed.
func (s *Store) EnsureSession(domain string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(domain).SessionID
}

// RecordNavigation ensures a session for domain and appends url to the
// page history unless it matches the last entry (same-URL re-fires are a
// no-op).
func (s *Store) RecordNavigation(domain, url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensureLocked(domain)
	if url != "" {
		n := len(sess.PageHistory)
		if n == 0 || sess.PageHistory[n-1] != url {
			sess.PageHistory = append(sess.PageHistory, url)
		}
	}
	return sess.SessionID
}

// MarkUsed suppresses future suggestions for a field identifier within
// the current session.
func (s *Store) MarkUsed(fieldID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && fieldID != "" {
		s.current.usedFieldIDs[fieldID] = true
	}
}

// MarkRejected suppresses a field the user explicitly dismissed.
func (s *Store) MarkRejected(fieldID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && fieldID != "" {
		s.current.rejectedFieldIDs[fieldID] = true
	}
}

// IsSuppressed reports whether a field was used or rejected earlier in
// the current session.
func (s *Store) IsSuppressed(fieldID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	return s.current.usedFieldIDs[fieldID] || s.current.rejectedFieldIDs[fieldID]
}

// Current returns a snapshot of the active session, if any.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, false
	}
	snapshot := Session{
		SessionID:   s.current.SessionID,
		Domain:      s.current.Domain,
		PageHistory: append([]string{}, s.current.PageHistory...),
	}
	return snapshot, true
}

// AppendUsage appends a used-field record to the per-session log, which
// is created on first use.
func (s *Store) AppendUsage(sessionID string, record store.UsedField) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.SessionID = sessionID
	if record.UsedAt.IsZero() {
		record.UsedAt = time.Now().UTC()
	}
	s.usageLog[sessionID] = append(s.usageLog[sessionID], record)
}

// UsageLog returns a copy of the usage records for a session.
func (s *Store) UsageLog(sessionID string) []store.UsedField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.UsedField{}, s.usageLog[sessionID]...)
}

// MarkUsedFieldInDocument appends a used-field record into the
// originating document's usedFields list. Usage tracking is best-effort
// telemetry: an unknown file, a missing index blob, or a failed write is
// a silent no-op.
func (s *Store) MarkUsedFieldInDocument(fileName string, record store.UsedField) {
	if s.manifest == nil || fileName == "" {
		return
	}

	manifest := s.manifest.ReadManifest()
	entry := manifest.FindEntry(fileName)
	if entry == nil {
		return
	}
	doc, err := s.manifest.ReadDocument(entry.IndexFile)
	if err != nil || doc == nil {
		return
	}

	if record.UsedAt.IsZero() {
		record.UsedAt = time.Now().UTC()
	}
	doc.UsedFields = append(doc.UsedFields, record)
	_ = s.manifest.WriteDocument(entry.IndexFile, doc)
}

// ensureLocked returns the session for domain, rotating the current one
// out when the domain differs. Caller holds the mutex.
func (s *Store) ensureLocked(domain string) *Session {
	if s.current == nil || s.current.Domain != domain {
		s.current = &Session{
			SessionID:        uuid.NewString(),
			Domain:           domain,
			PageHistory:      []string{},
			usedFieldIDs:     map[string]bool{},
			rejectedFieldIDs: map[string]bool{},
		}
	}
	return s.current
}
