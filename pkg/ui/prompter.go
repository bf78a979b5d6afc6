package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter reads user input line by line.
type Prompter interface {
	// Input shows label and returns the trimmed reply.
	Input(label string) (string, error)
	// Confirm asks a yes/no question. An empty reply picks def.
	Confirm(label string, def bool) (bool, error)
}

// LinePrompter is a Prompter over a line-oriented reader.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter reads from in and writes prompts to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Input implements Prompter. EOF maps to ErrCancelled.
func (p *LinePrompter) Input(label string) (string, error) {
	_, _ = fmt.Fprint(p.out, titleStyle.Render(label)+" ")
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) != "" {
				return strings.TrimSpace(line), nil
			}
			_, _ = fmt.Fprintln(p.out)
			return "", ErrCancelled
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm implements Prompter.
func (p *LinePrompter) Confirm(label string, def bool) (bool, error) {
	hint := "(y/N)"
	if def {
		hint = "(Y/n)"
	}
	for {
		answer, err := p.Input(fmt.Sprintf("%s %s", label, dimStyle.Render(hint)))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		_, _ = fmt.Fprintln(p.out, warnStyle.Render("Please answer y or n."))
	}
}
