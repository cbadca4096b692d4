package cmd

import (
	"io"

	"github.com/mabhi256/xmx/internal/logging"
	"github.com/spf13/cobra"
)

var (
	debugLog bool
	quiet    bool
)

// newLogger builds the operator log for a command. Full-screen commands pass
// io.Discard so console entries do not tear the alternate screen.
func newLogger(cmd *cobra.Command, console io.Writer) (*logging.Logger, error) {
	if console == nil {
		console = cmd.ErrOrStderr()
	}
	log, err := logging.New(logging.Options{
		Debug:   debugLog,
		Quiet:   quiet,
		Console: console,
	})
	if err != nil {
		return nil, err
	}
	if log.Path != "" {
		cmd.PrintErrf("📝 Debug log: %s\n", log.Path)
	}
	return log, nil
}
