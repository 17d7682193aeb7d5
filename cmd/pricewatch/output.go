package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/config"
	"github.com/jingkaihe/pricewatch/pkg/watcher"
)

const (
	exitFailure   = 1
	exitUserError = 2
)

type errorOutput struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeJSON prints v as one line. HTML characters are left unescaped so URLs
// stay readable.
func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, "{\"ok\":false,\"error\":%q}\n", err.Error())
	}
}

// runtimeError marks a failure that happened while executing a command, as
// opposed to a flag or argument error reported by cobra.
type runtimeError struct {
	err error
}

func (e *runtimeError) Error() string { return e.err.Error() }

func (e *runtimeError) Unwrap() error { return e.err }

func runtimeFailure(err error) error {
	if err == nil {
		return nil
	}
	return &runtimeError{err: err}
}

// exitCode maps err to 2 for bad input (flags, arguments, configuration,
// validation, unknown ids, empty discovery) and 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if watcher.IsUserError(err) || config.IsValidationError(err) {
		return exitUserError
	}
	var re *runtimeError
	if errors.As(err, &re) {
		return exitFailure
	}
	return exitUserError
}
