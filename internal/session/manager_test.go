package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	data   strings.Builder
	echoes []bool
	closed chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan error, 1)}
}

func (h *recordingHandler) OnData(_ *Session, data string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data.WriteString(data)
}

func (h *recordingHandler) OnEcho(_ *Session, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.echoes = append(h.echoes, on)
}

func (h *recordingHandler) OnClose(_ *Session, err error) {
	h.closed <- err
}

func (h *recordingHandler) text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data.String()
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestNewManager_HasCommonSession(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	common := m.Common()
	require.NotNil(t, common)
	assert.Equal(t, CommonName, common.Name())
	assert.Same(t, common, m.Current())
	assert.False(t, common.Connected())
	assert.NotEqual(t, [16]byte{}, [16]byte(common.ID()))

	err = common.Send("look")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, m.Remove(CommonName), ErrCommonSession)
	assert.ErrorIs(t, m.Remove("nope"), ErrUnknownSession)
	assert.ErrorIs(t, m.SetCurrent("nope"), ErrUnknownSession)
}

func TestNewManager_UnknownCharset(t *testing.T) {
	_, err := NewManager(WithCharset("klingon-8"))
	assert.ErrorIs(t, err, ErrUnknownCharset)
}

func TestConnect_ReadsSendsAndCloses(t *testing.T) {
	ln := listen(t)

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_, _ = conn.Write([]byte("Welcome!\r\nPassword: \xff\xfb\x01"))

		r := bufio.NewReader(conn)
		// Skip the IAC DO ECHO reply.
		reply := make([]byte, 3)
		if _, err := io.ReadFull(r, reply); err != nil {
			return
		}
		line, _ := r.ReadString('\n')
		received <- line
	}()

	m, err := NewManager()
	require.NoError(t, err)

	h := newRecordingHandler()
	s, err := m.Connect(context.Background(), "mud", ln.Addr().String(), h)
	require.NoError(t, err)
	assert.Same(t, s, m.Current())
	assert.True(t, s.Connected())

	require.Eventually(t, func() bool {
		return strings.Contains(h.text(), "Password: ")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, h.text(), "Welcome!")

	h.mu.Lock()
	assert.Equal(t, []bool{false}, h.echoes)
	h.mu.Unlock()

	require.NoError(t, s.Send("secret"))
	select {
	case line := <-received:
		assert.Equal(t, "secret\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the line")
	}

	select {
	case err := <-h.closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not closed")
	}
	assert.False(t, s.Connected())
}

func TestConnect_DuplicateName(t *testing.T) {
	ln := listen(t)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	m, err := NewManager()
	require.NoError(t, err)

	h := newRecordingHandler()
	_, err = m.Connect(context.Background(), "mud", ln.Addr().String(), h)
	require.NoError(t, err)

	_, err = m.Connect(context.Background(), "mud", ln.Addr().String(), h)
	assert.ErrorIs(t, err, ErrSessionExists)

	require.NoError(t, m.Remove("mud"))
	assert.Same(t, m.Common(), m.Current())
	_, ok := m.Get("mud")
	assert.False(t, ok)
}

func TestConnect_DecodesCharset(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("caf\xe9"))
		_ = conn.Close()
	}()

	m, err := NewManager(WithCharset("latin1"))
	require.NoError(t, err)

	h := newRecordingHandler()
	_, err = m.Connect(context.Background(), "euro", ln.Addr().String(), h)
	require.NoError(t, err)

	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not closed")
	}
	assert.Equal(t, "café", h.text())
}

func TestList_SortedByName(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	names := []string{}
	for _, s := range m.List() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{CommonName}, names)
}
