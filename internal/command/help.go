package command

import (
	"fmt"
	"strings"
)

// FormatList renders a command listing, one command per line: usage,
// owning extension and help text.
func FormatList(cmds []*Command, commandChar string) string {
	if len(cmds) == 0 {
		return "No commands registered.\n"
	}

	width := 0
	usages := make([]string, len(cmds))
	for i, c := range cmds {
		usages[i] = commandChar + c.Usage()
		width = max(width, len(usages[i]))
	}

	var b strings.Builder
	for i, c := range cmds {
		line := fmt.Sprintf("%-*s  (%s)", width, usages[i], sourceLabel(c.Source))
		if c.Help != "" {
			line += " " + c.Help
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func sourceLabel(s string) string {
	if s == "" {
		return "core"
	}
	return s
}
