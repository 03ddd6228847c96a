// Package shell implements a line-oriented command interpreter and a
// TCP/TLS server that runs one interpreter per accepted connection.
//
// Commands are registered explicitly as a name → handler table.  Each
// interpreter owns its own hidden and disabled sets, so sequential
// sessions served from the same process never interfere.
//
//	sh := shell.New(os.Stdin, os.Stdout, shell.WithCommands(
//		shell.Command{Name: "ping", Help: "Reply with pong", Run: ping},
//	))
//	err := sh.Run(ctx)
package shell

// Outcome is the result of dispatching one input line.  The read-eval
// loop switches on it instead of unwinding through errors.
type Outcome int

const (
	// Continue keeps the session going.
	Continue Outcome = iota
	// Terminate ends the session normally.
	Terminate
	// Unknown means the line named an unregistered or disabled command.
	Unknown
	// Failed means a handler ran and reported a failure.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Terminate:
		return "terminate"
	case Unknown:
		return "unknown"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// HandlerFunc runs one command.  args is the remainder of the input
// line after the command name, with surrounding whitespace removed.
type HandlerFunc func(sh *Interpreter, args string) Outcome

// Command is one entry in an interpreter's command table.
type Command struct {
	Name string
	// Help is printed by "help NAME" and "NAME ?".  Commands without
	// help text are listed as undocumented.
	Help string
	Run  HandlerFunc
}

const (
	cmdHelp = "help"
	cmdExit = "exit"
	// cmdEOF is dispatched when the input stream is exhausted.
	cmdEOF = "EOF"
)

// builtins returns the commands every interpreter starts with.
func builtins() []Command {
	return []Command{
		{
			Name: cmdHelp,
			Help: `List available commands with "help" or detailed help with "help <command>".`,
			Run: func(sh *Interpreter, args string) Outcome {
				sh.Help(firstField(args))
				return Continue
			},
		},
		{
			Name: cmdExit,
			Help: "Exit the interpreter.",
			Run: func(*Interpreter, string) Outcome {
				return Terminate
			},
		},
		{
			Name: cmdEOF,
			Help: "Exit the interpreter.",
			Run: func(sh *Interpreter, _ string) Outcome {
				sh.PrintLine("")
				return sh.commands[cmdExit].Run(sh, "")
			},
		},
	}
}

// undisableable commands keep every session terminable.
func undisableable(name string) bool {
	return name == cmdExit || name == cmdEOF
}
