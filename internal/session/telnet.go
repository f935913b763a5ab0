package session

import "io"

// Telnet protocol bytes.
const (
	iac  byte = 255
	dont byte = 254
	do   byte = 253
	wont byte = 252
	will byte = 251
	sb   byte = 250
	se   byte = 240

	optEcho byte = 1
)

type telnetState int

const (
	stateData telnetState = iota
	stateIAC
	stateOption
	stateSub
	stateSubIAC
)

// telnetReader strips telnet commands from r. A remote WILL ECHO turns
// local echo off and WONT ECHO turns it back on; every other option is
// refused.
type telnetReader struct {
	r      io.Reader
	onEcho func(on bool)
	reply  func(b []byte)

	state telnetState
	verb  byte
	raw   []byte
}

func newTelnetReader(r io.Reader, onEcho func(bool), reply func([]byte)) *telnetReader {
	return &telnetReader{
		r:      r,
		onEcho: onEcho,
		reply:  reply,
		raw:    make([]byte, 4096),
	}
}

// Read fills p with data bytes. It blocks until at least one data byte is
// available or the underlying reader fails.
func (t *telnetReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		size := min(len(p), len(t.raw))
		n, err := t.r.Read(t.raw[:size])
		out := t.filter(t.raw[:n], p)
		if out > 0 || err != nil {
			return out, err
		}
	}
}

// filter copies data bytes from in to out and handles commands. Since a
// command never yields more than one data byte, out always has room.
func (t *telnetReader) filter(in, out []byte) int {
	n := 0
	for _, b := range in {
		switch t.state {
		case stateData:
			if b == iac {
				t.state = stateIAC
				continue
			}
			out[n] = b
			n++

		case stateIAC:
			switch b {
			case iac:
				out[n] = iac
				n++
				t.state = stateData
			case will, wont, do, dont:
				t.verb = b
				t.state = stateOption
			case sb:
				t.state = stateSub
			default:
				// GA, NOP and friends carry no payload.
				t.state = stateData
			}

		case stateOption:
			t.negotiate(t.verb, b)
			t.state = stateData

		case stateSub:
			if b == iac {
				t.state = stateSubIAC
			}

		case stateSubIAC:
			if b == se {
				t.state = stateData
			} else {
				t.state = stateSub
			}
		}
	}
	return n
}

func (t *telnetReader) negotiate(verb, opt byte) {
	switch {
	case verb == will && opt == optEcho:
		t.send(do, opt)
		if t.onEcho != nil {
			t.onEcho(false)
		}
	case verb == wont && opt == optEcho:
		t.send(dont, opt)
		if t.onEcho != nil {
			t.onEcho(true)
		}
	case verb == will:
		t.send(dont, opt)
	case verb == do:
		t.send(wont, opt)
	}
}

func (t *telnetReader) send(verb, opt byte) {
	if t.reply != nil {
		t.reply([]byte{iac, verb, opt})
	}
}

// escapeIAC doubles every IAC byte so data is not read as a command.
func escapeIAC(b []byte) []byte {
	count := 0
	for _, c := range b {
		if c == iac {
			count++
		}
	}
	if count == 0 {
		return b
	}
	out := make([]byte, 0, len(b)+count)
	for _, c := range b {
		out = append(out, c)
		if c == iac {
			out = append(out, iac)
		}
	}
	return out
}
