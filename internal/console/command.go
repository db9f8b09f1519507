package console

import (
	"fmt"
	"strings"
)

// Verb enumerates the console command set. Parsing produces only these
// values; anything else is a parse error.
type Verb int

const (
	VerbStart Verb = iota
	VerbStop
	VerbRestart
	VerbStatus
	VerbLogs
	VerbQuit
)

var verbNames = map[string]Verb{
	"start":   VerbStart,
	"stop":    VerbStop,
	"restart": VerbRestart,
	"status":  VerbStatus,
	"logs":    VerbLogs,
	"quit":    VerbQuit,
	"exit":    VerbQuit,
}

// Command is a parsed console line. Arg is the service name for verbs
// that take one, empty otherwise.
type Command struct {
	Verb Verb
	Arg  string
}

// ParseCommand tokenizes one input line. It rejects unknown verbs,
// missing arguments, and trailing junk.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	verb, ok := verbNames[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	switch verb {
	case VerbStart, VerbStop, VerbRestart, VerbLogs:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("%s requires a service name", fields[0])
		}
		if len(fields) > 2 {
			return Command{}, fmt.Errorf("%s takes exactly one service name", fields[0])
		}
		return Command{Verb: verb, Arg: fields[1]}, nil
	default:
		if len(fields) > 1 {
			return Command{}, fmt.Errorf("%s takes no arguments", fields[0])
		}
		return Command{Verb: verb}, nil
	}
}

// Usage is printed on any parse error.
const Usage = `commands:
  start <service>    launch a service
  stop <service>     stop a service gracefully
  restart <service>  stop then start a service
  status             show all service states
  logs <service>     show captured output paths
  quit               stop everything and exit`
