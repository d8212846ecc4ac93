package orchestrator

import (
	"context"

	auth "github.com/eidcore/authsteps"
)

type checkResult struct {
	code auth.CheckCode
	err  error
}

// runChecks runs every schema declared pre condition check in
// parallel. A check failing with a carried result code resolves to
// that code without failing the call; any other error propagates
// unchanged.
func (s *service) runChecks(ctx context.Context, schema *auth.AuthSchema, user *auth.User, headers auth.Headers) (auth.ProcessCode, error) {
	if len(schema.Checks) == 0 || s.checks == nil {
		return 0, nil
	}

	in := auth.CheckInput{
		SchemaCode: schema.Code,
		User:       user,
		Headers:    headers,
	}

	results := make(chan checkResult, len(schema.Checks))
	for _, code := range schema.Checks {
		go func(code auth.CheckCode) {
			results <- checkResult{code: code, err: s.checks.Run(ctx, code, in)}
		}(code)
	}

	var carried auth.ProcessCode
	for range schema.Checks {
		result := <-results
		if result.err == nil {
			continue
		}

		if code, ok := auth.ErrorProcessCode(result.err); ok {
			if carried == 0 {
				carried = code
			}
			continue
		}

		return 0, result.err
	}

	return carried, nil
}
