// Package commands holds the administrative commands the cmdshell
// binary registers on every interpreter.
package commands

import (
	"strings"

	"cmdshell/internal/metrics"
	"cmdshell/shell"
	"cmdshell/util"
)

// Info is the process state the commands report on.
type Info struct {
	Version string
	Metrics *metrics.Collector
}

// All returns echo, log, stats and version.
func All(info Info) []shell.Command {
	return []shell.Command{
		Echo(),
		Log(),
		Stats(info.Metrics),
		Version(info.Version),
	}
}

// Echo prints its arguments.
func Echo() shell.Command {
	return shell.Command{
		Name: "echo",
		Help: "Print the arguments back.",
		Run: func(sh *shell.Interpreter, args string) shell.Outcome {
			sh.PrintLine(args)
			return shell.Continue
		},
	}
}

var logFuncs = map[string]func(l *util.Logger, format string, args ...interface{}){
	"error":   (*util.Logger).Error,
	"warning": (*util.Logger).Warn,
	"warn":    (*util.Logger).Warn,
	"info":    (*util.Logger).Info,
	"verbose": (*util.Logger).Verbose,
	"debug":   (*util.Logger).Debug,
}

// Log writes a record to the process logger.  Clients of a server see
// it through their log forwarder when its level passes their filter.
func Log() shell.Command {
	return shell.Command{
		Name: "log",
		Help: "log LEVEL MESSAGE\n" +
			"Write MESSAGE to the server log.  LEVEL is one of error, warning, info, verbose, debug.",
		Run: func(sh *shell.Interpreter, args string) shell.Outcome {
			level, msg, _ := strings.Cut(args, " ")
			msg = strings.TrimSpace(msg)
			logf, ok := logFuncs[strings.ToLower(level)]
			if !ok || msg == "" {
				sh.PrintError("usage: log LEVEL MESSAGE")
				return shell.Failed
			}
			l := sh.Logger()
			if l == nil {
				sh.PrintError("no logger is attached to this session")
				return shell.Failed
			}
			logf(l, "%s", msg)
			return shell.Continue
		},
	}
}

// Stats prints the process metrics as JSON.
func Stats(m *metrics.Collector) shell.Command {
	return shell.Command{
		Name: "stats",
		Help: "Show session, command and traffic counters.",
		Run: func(sh *shell.Interpreter, _ string) shell.Outcome {
			sh.PrintLine(m.JSON())
			return shell.Continue
		},
	}
}

// Version prints the build version.
func Version(v string) shell.Command {
	return shell.Command{
		Name: "version",
		Help: "Show the cmdshell version.",
		Run: func(sh *shell.Interpreter, _ string) shell.Outcome {
			sh.PrintLine("cmdshell " + v)
			return shell.Continue
		},
	}
}
