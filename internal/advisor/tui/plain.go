package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// RunPlain runs the same session as a line-oriented loop on in and out,
// for terminals that cannot host the interactive UI.
func RunPlain(ctx context.Context, asker Asker, banner string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, banner)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(q, ExitCommand) {
			return nil
		}
		if q == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		answer, err := asker.Run(ctx, q)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			continue
		}
		fmt.Fprintln(out, "Bot:", answer)
	}
}
