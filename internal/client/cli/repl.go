package cli

import (
	"context"
	"fmt"
	"strings"
)

// runREPL reads commands line by line until EOF, "exit" or "quit". Errors
// are printed and the loop carries on. Lines are read from the same reader
// the commands prompt on, so prompts inside a command see the next line.
func (a *App) runREPL(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to chatctl (type 'help' for commands)")

	for {
		fmt.Fprintf(a.out, "chat %s> ", a.getStatus())
		line, err := a.reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		}

		if err := a.execute(ctx, parts); err != nil {
			fmt.Fprintln(a.out, "Error:", err)
		}
	}
}
