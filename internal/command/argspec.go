package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ArgType is the type of a declared argument.
type ArgType int

const (
	TypeString ArgType = iota
	TypeInt
	TypeFloat
	TypeBool
	// TypeRest consumes the remainder of the line verbatim.
	TypeRest
)

var argTypeNames = map[string]ArgType{
	"string":  TypeString,
	"int":     TypeInt,
	"float":   TypeFloat,
	"boolean": TypeBool,
	"rest":    TypeRest,
}

func (t ArgType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "boolean"
	case TypeRest:
		return "rest"
	default:
		return "unknown"
	}
}

// Param is one declared argument.
type Param struct {
	Name       string
	Type       ArgType
	Default    any
	HasDefault bool
}

// Spec is an ordered argument declaration such as
// "unitId reload:boolean=true". Each space-separated entry has the form
// name[:type][=default].
type Spec struct {
	source string
	params []Param
}

// ParseSpec parses an argument spec. An empty string declares no
// arguments.
func ParseSpec(s string) (*Spec, error) {
	spec := &Spec{source: s}
	seen := make(map[string]bool)
	optional := false

	for _, field := range strings.Fields(s) {
		p, err := parseParam(s, field)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, &SpecError{Spec: s, Token: field, Reason: "duplicate argument name"}
		}
		if n := len(spec.params); n > 0 && spec.params[n-1].Type == TypeRest {
			return nil, &SpecError{Spec: s, Token: field, Reason: "rest argument must be last"}
		}
		if optional && !p.HasDefault && p.Type != TypeRest {
			return nil, &SpecError{Spec: s, Token: field, Reason: "required argument follows an optional one"}
		}
		optional = optional || p.HasDefault
		seen[p.Name] = true
		spec.params = append(spec.params, p)
	}
	return spec, nil
}

// MustParseSpec is like ParseSpec but panics on error. It is meant for
// specs written as literals in Go code.
func MustParseSpec(s string) *Spec {
	spec, err := ParseSpec(s)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseParam(spec, field string) (Param, error) {
	var p Param

	decl, def := field, ""
	if i := strings.IndexByte(field, '='); i >= 0 {
		decl, def = field[:i], field[i+1:]
		p.HasDefault = true
	}

	name, typ := decl, "string"
	if i := strings.IndexByte(decl, ':'); i >= 0 {
		name, typ = decl[:i], decl[i+1:]
	}
	if !validName(name) {
		return p, &SpecError{Spec: spec, Token: field, Reason: "bad argument name"}
	}
	t, ok := argTypeNames[typ]
	if !ok {
		return p, &SpecError{Spec: spec, Token: field, Reason: "unknown type " + strconv.Quote(typ)}
	}
	p.Name, p.Type = name, t

	if p.HasDefault {
		v, err := convert(t, def)
		if err != nil {
			return p, &SpecError{Spec: spec, Token: field, Reason: err.Error()}
		}
		p.Default = v
	}
	return p, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// Params returns the declared arguments in order.
func (s *Spec) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// String returns the spec as written.
func (s *Spec) String() string {
	return s.source
}

// Usage renders a usage line for the named command, e.g.
// "load <unitId> [reload=true]".
func (s *Spec) Usage(name string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range s.params {
		b.WriteByte(' ')
		switch {
		case p.HasDefault:
			fmt.Fprintf(&b, "[%s=%v]", p.Name, p.Default)
		case p.Type == TypeRest:
			fmt.Fprintf(&b, "[%s...]", p.Name)
		default:
			fmt.Fprintf(&b, "<%s>", p.Name)
		}
	}
	return b.String()
}

// Parse binds the words of line to the declared arguments, applying
// defaults. A rest argument takes the remainder of the line verbatim,
// quotes included. Parse has no side effects.
func (s *Spec) Parse(line string) (Args, error) {
	args := make(Args, len(s.params))
	next := 0
	pos := 0

	for {
		pos = skipSpaces(line, pos)
		if pos >= len(line) {
			break
		}

		for next < len(s.params) {
			if _, set := args[s.params[next].Name]; !set {
				break
			}
			next++
		}
		p, prefix, assigned := s.assignment(line[pos:])
		switch {
		case assigned && p.Type == TypeRest:
			args[p.Name] = strings.TrimRightFunc(line[pos+prefix:], unicode.IsSpace)
			return s.finish(args)
		case !assigned && next < len(s.params) && s.params[next].Type == TypeRest:
			args[s.params[next].Name] = strings.TrimRightFunc(line[pos:], unicode.IsSpace)
			return s.finish(args)
		}

		tok, end, err := readToken(line, pos)
		if err != nil {
			return nil, err
		}
		pos = end

		if p, value, ok := s.named(tok); ok {
			v, err := convert(p.Type, value)
			if err != nil {
				return nil, &ArgumentParseError{Token: tok.text, Reason: err.Error()}
			}
			args[p.Name] = v
			continue
		}

		if next >= len(s.params) {
			return nil, &ArgumentParseError{Token: tok.text, Reason: "too many arguments"}
		}
		p = s.params[next]
		v, err := convert(p.Type, tok.text)
		if err != nil {
			return nil, &ArgumentParseError{Token: tok.text, Reason: err.Error()}
		}
		args[p.Name] = v
		next++
	}
	return s.finish(args)
}

// finish applies defaults and checks that every required argument is set.
func (s *Spec) finish(args Args) (Args, error) {
	for _, p := range s.params {
		if _, set := args[p.Name]; set {
			continue
		}
		switch {
		case p.HasDefault:
			args[p.Name] = p.Default
		case p.Type == TypeRest:
			args[p.Name] = ""
		default:
			return nil, &ArgumentParseError{Token: p.Name, Reason: "missing required argument"}
		}
	}
	return args, nil
}

// assignment reports whether text begins with name= for a declared
// argument, returning that argument and the length of the name= prefix.
func (s *Spec) assignment(text string) (Param, int, bool) {
	i := 0
	for i < len(text) && (text[i] == '_' || isAlnum(text[i])) {
		i++
	}
	if i == 0 || i >= len(text) || text[i] != '=' {
		return Param{}, 0, false
	}
	for _, p := range s.params {
		if p.Name == text[:i] {
			return p, i + 1, true
		}
	}
	return Param{}, 0, false
}

// named reports whether tok is a name=value assignment to a declared
// argument.
func (s *Spec) named(tok token) (Param, string, bool) {
	if tok.quoted {
		return Param{}, "", false
	}
	i := strings.IndexByte(tok.raw, '=')
	if i <= 0 {
		return Param{}, "", false
	}
	key := tok.raw[:i]
	for _, p := range s.params {
		if p.Name == key {
			return p, tok.text[i+1:], true
		}
	}
	return Param{}, "", false
}

func convert(t ArgType, s string) (any, error) {
	switch t {
	case TypeInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		return f, nil
	case TypeBool:
		return parseBool(s)
	default:
		return s, nil
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}

// token is one word of a command line. text has quotes and braces removed;
// raw is the unquoted prefix up to the first quote, used to detect
// name=value assignments.
type token struct {
	text   string
	raw    string
	quoted bool
}

// readToken reads one word starting at pos. "Double quotes" and {braces}
// group words; braces nest and keep inner quotes.
func readToken(line string, pos int) (token, int, error) {
	var tok token
	start := pos
	var text strings.Builder
	rawDone := false

	i := pos
	for i < len(line) && !isSpace(line[i]) {
		var (
			end int
			s   string
			err error
		)
		switch line[i] {
		case '"':
			end, s, err = readQuoted(line, i)
		case '{':
			end, s, err = readBraced(line, i)
		default:
			if !rawDone {
				tok.raw += string(line[i])
			}
			text.WriteByte(line[i])
			i++
			continue
		}
		if err != nil {
			return token{}, 0, err
		}
		if i == start {
			tok.quoted = true
		}
		rawDone = true
		text.WriteString(s)
		i = end
	}
	tok.text = text.String()
	return tok, i, nil
}

func readQuoted(line string, start int) (int, string, error) {
	var b strings.Builder
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if i+1 < len(line) {
				i++
				b.WriteByte(line[i])
			}
		case '"':
			return i + 1, b.String(), nil
		default:
			b.WriteByte(line[i])
		}
	}
	return 0, "", &ArgumentParseError{Token: line[start:], Reason: "unterminated quote"}
}

func readBraced(line string, start int) (int, string, error) {
	depth := 0
	for i := start; i < len(line); i++ {
		switch line[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, line[start+1 : i], nil
			}
		}
	}
	return 0, "", &ArgumentParseError{Token: line[start:], Reason: "unterminated brace"}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipSpaces(line string, pos int) int {
	for pos < len(line) && isSpace(line[pos]) {
		pos++
	}
	return pos
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
