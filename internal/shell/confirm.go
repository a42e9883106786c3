package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mia/internal/assistant"
)

var ErrNotApproved = errors.New("execution not approved")

// Confirming asks the operator before handing a command to Next.
type Confirming struct {
	Next   assistant.Executor
	Reader *bufio.Reader
	Out    io.Writer
}

func (c *Confirming) Run(ctx context.Context, command string) error {
	approved, err := c.confirm(fmt.Sprintf("Run command: %s?", command))
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !approved {
		return ErrNotApproved
	}
	return c.Next.Run(ctx, command)
}

func (c *Confirming) confirm(prompt string) (bool, error) {
	for {
		fmt.Fprintf(c.Out, "%s [y/N]: ", prompt)
		line, err := c.Reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" || answer == "n" || answer == "no" {
			return false, nil
		}
		if answer == "y" || answer == "yes" {
			return true, nil
		}
		if err != nil {
			return false, err
		}
	}
}
