package config

import (
	"strings"

	"github.com/abdala/minicon/pkg/errors"
)

// SplitCommand splits a command line into its argument vector, honoring
// single and double quotes. Vectors are kept first-class from parse to
// execution; no re-quoting round-trips happen later.
func SplitCommand(line string) ([]string, error) {
	var argv []string
	var current strings.Builder
	var quote rune
	inWord := false

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				argv = append(argv, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, errors.Newf(errors.ErrInvalidInput, "unbalanced quote in command %q", line)
	}
	if inWord {
		argv = append(argv, current.String())
	}
	return argv, nil
}
