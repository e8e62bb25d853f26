package fluxlet

import (
	shellquote "github.com/kballard/go-shellquote"

	"github.com/matensemble/matensemble/pkg/errtypes"
)

// splitCommand tokenizes a command line using POSIX shell-quoting rules via
// github.com/kballard/go-shellquote, turning a single command string into
// argv the way a POSIX shell would: whitespace separates tokens except
// inside single or double quotes, and a backslash escapes the following
// character outside single quotes.
//
// This is already a transitive dependency of the teacher's go.mod (pulled
// in by its embedded dev-cluster stack); it is promoted to a direct,
// wired-in dependency here since fluxlet's command-splitting contract is
// exactly the job it's built for.
func splitCommand(command string) ([]string, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, errtypes.NewInvalidConfig("command %q: %v", command, err)
	}
	if words == nil {
		words = []string{}
	}
	return words, nil
}
