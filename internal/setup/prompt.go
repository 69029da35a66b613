package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptPassword reads a secret from stdin without echo when stdin is a
// terminal. With confirm set the value must be entered twice.
func PromptPassword(label string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		read := func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			return string(b), err
		}
		return prompt(read, os.Stderr, label, confirm)
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression isn't possible.
	r := bufio.NewReader(os.Stdin)
	return prompt(lineReader(r), os.Stderr, label, confirm)
}

func lineReader(r *bufio.Reader) func() (string, error) {
	return func() (string, error) {
		s, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && s != "") {
			return "", err
		}
		return s, nil
	}
}

func prompt(read func() (string, error), w io.Writer, label string, confirm bool) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		fmt.Fprintf(w, "%s: ", label)
		p1, err := read()
		if err != nil {
			return "", err
		}
		p1 = strings.TrimSpace(p1)
		if p1 == "" {
			fmt.Fprintln(w, "password cannot be empty")
			continue
		}
		if !confirm {
			return p1, nil
		}
		fmt.Fprint(w, "Confirm password: ")
		p2, err := read()
		if err != nil {
			return "", err
		}
		if p1 != strings.TrimSpace(p2) {
			fmt.Fprintln(w, "passwords do not match")
			continue
		}
		return p1, nil
	}
	return "", errors.New("too many attempts")
}
