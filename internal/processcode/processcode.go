// Package processcode resolves caller facing result codes from
// process state.
package processcode

import (
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

// OnVerify resolves the result code reported after a verified step.
// Every strategy must exhaustively declare an outcome for every status
// and method pair it can produce; a missing entry is a defect and is
// reported as a plain internal error, never silently defaulted.
func OnVerify(status auth.Status, step *auth.Step, codes map[auth.Status]map[auth.Method]auth.ProcessCode) (auth.ProcessCode, error) {
	if step == nil {
		return 0, errors.New("process code requested for a stepless process")
	}

	byMethod, ok := codes[status]
	if !ok {
		return 0, errors.Errorf("no process codes declared for status %s", status)
	}

	code, ok := byMethod[step.Method]
	if !ok {
		return 0, errors.Errorf(
			"no process code declared for status %s and method %s", status, step.Method,
		)
	}

	return code, nil
}
