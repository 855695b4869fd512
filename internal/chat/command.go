package chat

import (
	"fmt"
	"strings"
)

// CommandKind identifies an authenticated-state command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandMessage
	CommandList
	CommandQuit
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind
	To   string
	Body string
}

// ParseCommand parses a line of the command grammar:
//
//	m <login> <text>
//	l
//	q
//
// Anything else is CommandUnknown. A malformed "m" line returns
// ErrMalformedCommand.
func ParseCommand(line string, maxLoginLength int) (Command, error) {
	line = strings.TrimRight(line, "\r\n")

	switch strings.TrimSpace(line) {
	case "l":
		return Command{Kind: CommandList}, nil
	case "q":
		return Command{Kind: CommandQuit}, nil
	case "m":
		return Command{}, fmt.Errorf("%w: missing recipient", ErrMalformedCommand)
	}

	rest, ok := strings.CutPrefix(line, "m ")
	if !ok {
		return Command{Kind: CommandUnknown}, nil
	}

	to, body, found := strings.Cut(rest, " ")
	switch {
	case !found:
		return Command{}, fmt.Errorf("%w: missing text", ErrMalformedCommand)
	case to == "":
		return Command{}, fmt.Errorf("%w: empty recipient", ErrMalformedCommand)
	case maxLoginLength > 0 && len(to) > maxLoginLength:
		return Command{}, fmt.Errorf("%w: recipient too long", ErrMalformedCommand)
	}

	return Command{Kind: CommandMessage, To: to, Body: body}, nil
}
