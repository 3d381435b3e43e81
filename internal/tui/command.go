package tui

import (
	"fmt"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	if canonical, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = canonical
	}
	return cmd
}

var commandAliases = map[string]string{
	"q":    "quit",
	"exit": "quit",
	"h":    "help",
	"o":    "open",
	"chat": "open",
	"s":    "search",
}

// commandArgs lists whether each known command requires an argument.
var commandArgs = map[string]bool{
	"quit":   false,
	"help":   false,
	"open":   true,
	"search": true,
	"share":  false,
	"resend": false,
	"login":  false,
	"logout": false,
}

// Validate reports unknown commands and missing arguments.
func (c Command) Validate() error {
	needsArg, ok := commandArgs[c.Name]
	if !ok {
		return fmt.Errorf("unknown command %q", c.Name)
	}
	if needsArg && c.Args == "" {
		return fmt.Errorf(":%s needs an argument", c.Name)
	}
	return nil
}
