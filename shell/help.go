package shell

import (
	"strings"
)

// helpWidth is the line width used to columnize command lists.
const helpWidth = 80

// Help prints help for topic, or the list of visible commands when
// topic is empty.  Disabled and unregistered topics report as unknown.
func (sh *Interpreter) Help(topic string) {
	if topic == "" {
		sh.printCommandList()
		return
	}

	cmd, ok := sh.commands[topic]
	if !ok || sh.disabled[topic] {
		sh.unknown(topic)
		return
	}
	if cmd.Help == "" {
		sh.PrintLine("no help on " + topic)
		return
	}
	sh.PrintLine(cmd.Help)
}

func (sh *Interpreter) printCommandList() {
	var documented, undocumented []string
	for _, name := range sh.ListCommands() {
		if sh.commands[name].Help != "" {
			documented = append(documented, name)
		} else {
			undocumented = append(undocumented, name)
		}
	}

	sh.PrintLine("")
	sh.printTopics("Documented commands (type help <topic>):", documented)
	sh.printTopics("Undocumented commands:", undocumented)
}

func (sh *Interpreter) printTopics(header string, names []string) {
	if len(names) == 0 {
		return
	}
	sh.PrintLine(header)
	sh.PrintLine(strings.Repeat("=", len(header)))
	for _, row := range columnize(names, helpWidth) {
		sh.PrintLine(row)
	}
	sh.PrintLine("")
}

// columnize lays names out top-to-bottom in as many equal-width
// columns as fit in width.
func columnize(names []string, width int) []string {
	if len(names) == 0 {
		return nil
	}

	colWidth := 0
	for _, n := range names {
		if len(n) > colWidth {
			colWidth = len(n)
		}
	}
	colWidth += 2

	cols := width / colWidth
	if cols < 1 {
		cols = 1
	}
	rows := (len(names) + cols - 1) / cols

	out := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		var b strings.Builder
		for c := 0; c < cols; c++ {
			i := c*rows + r
			if i >= len(names) {
				break
			}
			b.WriteString(names[i])
			if pad := colWidth - len(names[i]); pad > 0 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		out = append(out, strings.TrimRight(b.String(), " "))
	}
	return out
}
