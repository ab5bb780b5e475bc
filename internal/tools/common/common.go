// Package common holds output helpers shared by the maintenance commands.
package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Exit codes returned by maintenance commands in --ci mode.
const (
	ExitOK      = 0
	ExitFailure = 4
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Task    string   `json:"task"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func PrintCIResult(ok bool, task string, details []string, err error) {
	writeCIResult(os.Stdout, ok, task, details, err)
}

func writeCIResult(w io.Writer, ok bool, task string, details []string, err error) {
	res := CIResult{OK: ok, Task: task, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	b, mErr := json.Marshal(res)
	if mErr != nil {
		fmt.Fprintf(w, "{\"ok\":false,\"task\":%q,\"error\":%q}\n", task, mErr.Error())
		return
	}
	fmt.Fprintln(w, string(b))
}
