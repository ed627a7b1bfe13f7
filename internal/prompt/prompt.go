// Package prompt asks yes/no questions on a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxAttempts bounds how often an unrecognised answer is re-asked.
const maxAttempts = 3

// ErrNoAnswer is returned when the user keeps giving unrecognised answers.
var ErrNoAnswer = errors.New("no valid answer given")

// Prompter reads answers from in and writes questions to out. With
// AssumeDefaults every question takes its default without reading input.
type Prompter struct {
	in             *bufio.Reader
	out            io.Writer
	AssumeDefaults bool
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks question and returns the answer. An empty line or end of
// input selects def.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	if p.AssumeDefaults {
		fmt.Fprintf(p.out, "%s %s %s\n", question, hint, answerText(def))
		return def, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s %s ", question, hint)
		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return def, fmt.Errorf("reading answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
			}
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			break
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
	return def, ErrNoAnswer
}

func answerText(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
