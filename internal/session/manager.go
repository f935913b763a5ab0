package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"golang.org/x/text/encoding"

	"github.com/dshills/mudcore/internal/logging"
)

// Sentinel errors for sessions.
var (
	ErrNotConnected   = errors.New("session is not connected")
	ErrUnknownSession = errors.New("no such session")
	ErrSessionExists  = errors.New("session already exists")
	ErrCommonSession  = errors.New("the common session cannot be removed")
	ErrUnknownCharset = errors.New("unknown charset")
)

// Dialer opens a connection.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Manager tracks named sessions and which one is current.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	common   *Session
	current  *Session

	enc    encoding.Encoding
	dialer Dialer
	logger *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithCharset sets the charset used to decode and encode session text.
// The default is UTF-8.
func WithCharset(name string) Option {
	return func(m *Manager) error {
		enc, err := lookupCharset(name)
		if err != nil {
			return err
		}
		m.enc = enc
		return nil
	}
}

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) error {
		m.dialer = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) error {
		if l != nil {
			m.logger = l
		}
		return nil
	}
}

// NewManager creates a manager holding only the common session, which is
// also current.
func NewManager(opts ...Option) (*Manager, error) {
	var d net.Dialer
	m := &Manager{
		sessions: make(map[string]*Session),
		dialer:   d.DialContext,
		logger:   logging.Nop(),
	}
	if err := WithCharset("utf-8")(m); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	m.common = newSession(CommonName, "", m.enc, m.logger)
	m.sessions[CommonName] = m.common
	m.current = m.common
	return m, nil
}

// Common returns the connectionless default session.
func (m *Manager) Common() *Session {
	return m.common
}

// Current returns the current session.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetCurrent makes the named session current.
func (m *Manager) SetCurrent(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, name)
	}
	m.current = s
	return nil
}

// Get returns the named session.
func (m *Manager) Get(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	return s, ok
}

// List returns all sessions sorted by name.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Connect dials addr, registers the session under name, makes it current
// and starts its reader. h receives everything the reader produces.
func (m *Manager) Connect(ctx context.Context, name, addr string, h Handler) (*Session, error) {
	m.mu.RLock()
	_, exists := m.sessions[name]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, name)
	}

	conn, err := m.dialer(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s to %s: %w", name, addr, err)
	}

	s := newSession(name, addr, m.enc, m.logger)

	m.mu.Lock()
	if _, exists := m.sessions[name]; exists {
		m.mu.Unlock()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, name)
	}
	m.sessions[name] = s
	m.current = s
	m.mu.Unlock()

	s.logger.Info("connected to %s", addr)
	s.start(conn, h)
	return s, nil
}

// Remove closes and forgets the named session. If it was current, the
// common session becomes current.
func (m *Manager) Remove(name string) error {
	if name == CommonName {
		return ErrCommonSession
	}

	m.mu.Lock()
	s, ok := m.sessions[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSession, name)
	}
	delete(m.sessions, name)
	if m.current == s {
		m.current = m.common
	}
	m.mu.Unlock()

	return s.Close()
}

// CloseAll closes every connected session.
func (m *Manager) CloseAll() error {
	var errs []error
	for _, s := range m.List() {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
