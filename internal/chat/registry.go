package chat

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const (
	DefaultCapacity       = 20
	DefaultMaxLoginLength = 256
)

var validate = validator.New()

// Registry maps logins to their client records. It owns login uniqueness and
// the active/inactive state of every record. Records persist across logout
// so that a reconnecting login keeps its identity and offline backlog.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*clientRecord
	order   []string

	capacity int
	log      *slog.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registry events.
func WithRegistryLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry constructs an empty registry holding at most capacity records.
func NewRegistry(capacity int, opts ...RegistryOption) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Registry{
		records:  make(map[string]*clientRecord),
		capacity: capacity,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParseLogin turns the first line a client sends into a login. Trailing
// newline characters are removed; the result must be non-empty printable
// ASCII without whitespace and no longer than maxLength bytes.
func ParseLogin(raw string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLoginLength
	}
	login := strings.TrimRight(raw, "\r\n")

	if err := validate.Var(login, fmt.Sprintf("required,printascii,max=%d", maxLength)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLogin, err)
	}
	if strings.IndexFunc(login, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: contains whitespace", ErrInvalidLogin)
	}
	return login, nil
}

// Login binds transport to login. A never-seen login gets a new record; an
// inactive record is reactivated and rebound to the new transport with its
// offline queue intact. Its backlog is not moved here: the caller replays it
// through the Dispatcher once the client has been greeted.
func (r *Registry) Login(login string, transport Transport) (ClientInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[login]; ok {
		if rec.active() {
			return ClientInfo{}, ErrAlreadyActive
		}
		rec.state = StateActive
		rec.transport = transport
		r.log.Info("client reconnected", "login", login, "pending", rec.offline.Len())
		return rec.info(), nil
	}

	if len(r.records) >= r.capacity && !r.evictLocked() {
		return ClientInfo{}, ErrRegistryFull
	}

	rec := newClientRecord(login, transport)
	r.records[login] = rec
	r.order = append(r.order, login)
	r.log.Info("client registered", "login", login, "clients", len(r.records))
	return rec.info(), nil
}

// evictLocked drops the oldest inactive record that has nothing queued.
func (r *Registry) evictLocked() bool {
	for i, login := range r.order {
		rec := r.records[login]
		if rec.active() || rec.offline.Len() > 0 {
			continue
		}
		delete(r.records, login)
		r.order = append(r.order[:i], r.order[i+1:]...)
		r.log.Debug("evicted idle record", "login", login)
		return true
	}
	return false
}

// Logout marks the login inactive. The record and its offline queue remain.
func (r *Registry) Logout(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[login]
	if !ok || !rec.active() {
		return
	}
	rec.state = StateInactive
	rec.transport = nil
	r.log.Info("client logged out", "login", login)
}

// Find returns a snapshot of the record for login.
func (r *Registry) Find(login string) (ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[login]
	if !ok {
		return ClientInfo{}, false
	}
	return rec.info(), true
}

// ListActiveLogins returns the active logins in registration order.
func (r *Registry) ListActiveLogins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(r.order, func(login string, _ int) (string, bool) {
		return login, r.records[login].active()
	})
}

// Len returns the number of records, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// transportFor returns the live transport of an active login.
func (r *Registry) transportFor(login string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[login]
	if !ok || !rec.active() || rec.transport == nil {
		return nil, false
	}
	return rec.transport, true
}

// withRecord runs fn on the record for login while holding the write lock.
func (r *Registry) withRecord(login string, fn func(*clientRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[login]
	if !ok {
		return ErrUnknownRecipient
	}
	return fn(rec)
}

// deactivateAll marks every active record inactive and hands back their
// transports so the caller can notify and close them outside the lock.
func (r *Registry) deactivateAll() []Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := lo.Filter(r.order, func(login string, _ int) bool {
		return r.records[login].active()
	})
	return lo.Map(active, func(login string, _ int) Transport {
		rec := r.records[login]
		t := rec.transport
		rec.state = StateInactive
		rec.transport = nil
		return t
	})
}
