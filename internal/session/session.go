// Package session manages connections to remote game servers.
//
// Every connection is a Session. A reader goroutine per session strips
// telnet negotiation, decodes the server's charset and hands text to a
// Handler; the handler is expected to turn it into events. A Manager
// always holds the "common" session, which has no connection and is the
// default context for commands.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/dshills/mudcore/internal/logging"
)

// CommonName is the name of the connectionless default session.
const CommonName = "common"

// Handler receives what a session's reader produces. Calls for one session
// come from a single goroutine, in the order the data arrived.
type Handler interface {
	// OnData is called with each chunk of decoded text.
	OnData(s *Session, data string)

	// OnEcho is called when the server turns local echo on or off.
	OnEcho(s *Session, on bool)

	// OnClose is called once when the connection ends. err is nil for a
	// clean remote close.
	OnClose(s *Session, err error)
}

// Session is a named connection to a server.
type Session struct {
	id   uuid.UUID
	name string
	addr string

	enc    encoding.Encoding
	logger *logging.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func newSession(name, addr string, enc encoding.Encoding, logger *logging.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:     id,
		name:   name,
		addr:   addr,
		enc:    enc,
		logger: logger.WithFields(map[string]any{"session": name, "id": id.String()}),
	}
}

// ID returns the session's unique id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Name returns the session's name.
func (s *Session) Name() string {
	return s.name
}

// Addr returns the remote address, or "" for the common session.
func (s *Session) Addr() string {
	return s.addr
}

// Connected reports whether the session has an open connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.closed
}

// Send writes a line of text to the server, encoded in the session's
// charset.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if conn == nil || closed {
		return fmt.Errorf("%w: %s", ErrNotConnected, s.name)
	}

	encoded, err := s.enc.NewEncoder().String(text + "\n")
	if err != nil {
		return fmt.Errorf("encode for %s: %w", s.name, err)
	}
	if _, err := conn.Write(escapeIAC([]byte(encoded))); err != nil {
		return fmt.Errorf("send to %s: %w", s.name, err)
	}
	return nil
}

// Close closes the connection. Closing the common session or an already
// closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *Session) String() string {
	if s.addr == "" {
		return s.name
	}
	return s.name + " (" + s.addr + ")"
}

// start attaches conn and launches the reader goroutine.
func (s *Session) start(conn net.Conn, h Handler) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn, h)
}

func (s *Session) readLoop(conn net.Conn, h Handler) {
	tr := newTelnetReader(conn,
		func(on bool) { h.OnEcho(s, on) },
		func(b []byte) {
			if _, err := conn.Write(b); err != nil {
				s.logger.Debug("telnet reply failed: %v", err)
			}
		},
	)
	r := transform.NewReader(tr, s.enc.NewDecoder())

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.OnData(s, string(buf[:n]))
		}
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.closed = true
			s.mu.Unlock()

			if errors.Is(err, io.EOF) || wasClosed {
				err = nil
			}
			s.logger.Info("connection closed")
			h.OnClose(s, err)
			return
		}
	}
}

// lookupCharset resolves a charset label such as "utf-8" or "latin1".
func lookupCharset(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	return enc, nil
}
