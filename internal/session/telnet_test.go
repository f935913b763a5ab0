package session

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllTelnet(t *testing.T, r io.Reader) (data []byte, echoes []bool, replies [][]byte) {
	t.Helper()
	tr := newTelnetReader(r,
		func(on bool) { echoes = append(echoes, on) },
		func(b []byte) { replies = append(replies, append([]byte(nil), b...)) },
	)
	data, err := io.ReadAll(tr)
	require.NoError(t, err)
	return data, echoes, replies
}

func TestTelnetReader_StripsEchoNegotiation(t *testing.T) {
	in := []byte("Password: \xff\xfb\x01secret\xff\xfc\x01done")

	data, echoes, replies := readAllTelnet(t, bytes.NewReader(in))

	assert.Equal(t, "Password: secretdone", string(data))
	assert.Equal(t, []bool{false, true}, echoes)
	assert.Equal(t, [][]byte{{iac, do, optEcho}, {iac, dont, optEcho}}, replies)
}

func TestTelnetReader_EscapedIAC(t *testing.T) {
	data, echoes, _ := readAllTelnet(t, bytes.NewReader([]byte("a\xff\xffb")))
	assert.Equal(t, []byte{'a', iac, 'b'}, data)
	assert.Empty(t, echoes)
}

func TestTelnetReader_RefusesOtherOptions(t *testing.T) {
	// WILL GMCP (201), DO NAWS (31)
	_, echoes, replies := readAllTelnet(t, bytes.NewReader([]byte{iac, will, 201, iac, do, 31, 'x'}))
	assert.Empty(t, echoes)
	assert.Equal(t, [][]byte{{iac, dont, 201}, {iac, wont, 31}}, replies)
}

func TestTelnetReader_SkipsSubnegotiation(t *testing.T) {
	in := []byte{'a', iac, sb, 24, 1, 'x', 'y', iac, se, 'b'}
	data, _, _ := readAllTelnet(t, bytes.NewReader(in))
	assert.Equal(t, "ab", string(data))
}

func TestTelnetReader_CommandSplitAcrossReads(t *testing.T) {
	in := []byte("one\xff\xfb\x01two")
	data, echoes, _ := readAllTelnet(t, iotest.OneByteReader(bytes.NewReader(in)))
	assert.Equal(t, "onetwo", string(data))
	assert.Equal(t, []bool{false}, echoes)
}

func TestEscapeIAC(t *testing.T) {
	assert.Equal(t, []byte("plain"), escapeIAC([]byte("plain")))
	assert.Equal(t, []byte{'a', iac, iac, 'b'}, escapeIAC([]byte{'a', iac, 'b'}))
}
