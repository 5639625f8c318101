// Command cronus runs the commands of a crontab file on schedule and records
// each task's last call back into the file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err))
}

// exitError carries a process exit code. A nil err means the message was
// already printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// usageErr marks bad arguments or configuration (exit 2).
func usageErr(err error) error { return &exitError{code: 2, err: err} }

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "cronus:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "cronus:", err)
	return 1
}
