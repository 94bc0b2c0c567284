package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"meshport/internal/api"
)

// errReported marks failures whose details were already written to stdout.
var errReported = errors.New("failure already reported")

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit writes a service response. In JSON mode the whole response is printed
// and a failure exits non-zero without repeating the message; otherwise
// render prints the success fields and a failure becomes the command error.
func (c *commandContext) emit(cmd *cobra.Command, failure api.Failure, payload any, render func()) error {
	if c.JSONMode() {
		if err := writeJSON(cmd, payload); err != nil {
			return err
		}
		if failure.Failed() {
			return errReported
		}
		return nil
	}
	if failure.Failed() {
		return fmt.Errorf("%s error: %s", failure.ErrorKind, failure.Error)
	}
	render()
	return nil
}
