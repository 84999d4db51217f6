// Command carnetctl is the operator CLI for the card workflow. It talks to the
// configured backends directly, so it needs the same configuration as the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
)

func main() {
	cmd := newRootCommand(openApp)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, describeError(err))
		}
		os.Exit(1)
	}
}

func describeError(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if len(ae.Details) > 0 {
			return fmt.Sprintf("%s: %s %v", ae.Code, ae.Message, ae.Details)
		}
		return fmt.Sprintf("%s: %s", ae.Code, ae.Message)
	}
	return err.Error()
}
