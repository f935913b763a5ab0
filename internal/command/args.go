package command

// Args holds parsed argument values keyed by declared name. Values are
// string, int, float64 or bool according to the declared type.
type Args map[string]any

// String returns the named argument as a string, or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the named int argument, or 0.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Float returns the named float argument, or 0.
func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns the named boolean argument, or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}
