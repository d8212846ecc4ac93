package orchestrator

import (
	"context"
	"time"

	auth "github.com/eidcore/authsteps"
)

// endedChainError reports a schema tree that ran out of nodes while
// steps remain unresolved. The strategy may declare its own fallback
// code; the default reports an expired waiting period.
func endedChainError(strategy auth.Strategy) error {
	code := strategy.EndedChainCode()
	if code == 0 {
		code = auth.ProcessCodeWaitingPeriodExpired
	}
	return auth.ErrAccessDenied{Reason: "authentication chain ended", Result: code}
}

// validateSteps re-validates the full step chain of a process against
// its schema tree. Completed steps only move the tree position; the
// active step is checked against the attempt, verification, and TTL
// policy of its node. With throwOnLastAttempt set, a step sitting
// exactly at its limit is already rejected, which is used to decide
// whether a failed verification consumed the final allowed attempt.
func (s *service) validateSteps(
	ctx context.Context,
	schema *auth.AuthSchema,
	strategy auth.Strategy,
	process *auth.AuthProcess,
	method auth.Method,
	user *auth.User,
	headers auth.Headers,
	throwOnLastAttempt bool,
) error {
	position := schema.Tree

	for i := range process.Steps {
		step := &process.Steps[i]
		var node *auth.SchemaNode
		if position != nil {
			node = position[step.Method]
		}

		if step.Ended() {
			if node == nil {
				return endedChainError(strategy)
			}
			position = node.Children
			continue
		}

		// Only the last step may be unended.
		if step.Method != method {
			return auth.ErrAccessDenied{
				Reason: "provided method is not expected",
				Result: auth.ProcessCodeAuthFailed,
			}
		}

		if node == nil {
			// No policy declared for this method; limits do not apply.
			continue
		}

		policy := node.Policy

		if policy.MaxVerifyAttempts > 1 {
			exceeded := step.VerifyAttempts > policy.MaxVerifyAttempts ||
				(throwOnLastAttempt && step.VerifyAttempts == policy.MaxVerifyAttempts)
			if exceeded {
				return auth.ErrAccessDenied{
					Reason: "verify attempts exceeded",
					Result: auth.ProcessCodeVerifyAttemptsExceeded,
				}
			}
		} else if policy.MaxAttempts > 0 {
			exceeded := step.Attempts > policy.MaxAttempts ||
				(throwOnLastAttempt && step.Attempts == policy.MaxAttempts)
			if exceeded {
				strategy.OnAttemptsExceeded(ctx, user, headers)
				return auth.ErrAccessDenied{
					Reason: "attempts exceeded",
					Result: auth.ProcessCodeAttemptsExceeded,
				}
			}
		}

		if policy.TTL > 0 && time.Since(step.StartDate) > policy.TTL {
			return auth.ErrAccessDenied{
				Reason: "waiting period expired",
				Result: auth.ProcessCodeWaitingPeriodExpired,
			}
		}
	}

	if last := process.LastStep(); last != nil && last.Ended() && last.Method == method {
		return auth.ErrAccessDenied{
			Reason: "step already ended",
			Result: auth.ProcessCodeAuthFailed,
		}
	}

	if position == nil || position[method] == nil {
		return auth.ErrAccessDenied{
			Reason: "method is not allowed",
			Result: auth.ProcessCodeAuthFailed,
		}
	}

	return nil
}

// eligibleMethods replays the completed steps of a process through the
// schema tree and returns the methods available at the resulting
// position. Reaching a missing node while steps remain is a fatal
// ended chain.
func eligibleMethods(schema *auth.AuthSchema, strategy auth.Strategy, process *auth.AuthProcess) ([]auth.Method, error) {
	position := schema.Tree

	for _, step := range process.Steps {
		if !step.Ended() {
			break
		}

		var node *auth.SchemaNode
		if position != nil {
			node = position[step.Method]
		}
		if node == nil {
			return nil, endedChainError(strategy)
		}
		position = node.Children
	}

	return orderedMethods(schema, position), nil
}

// orderedMethods returns the methods of a tree position in the
// schema's declared method order, keeping responses deterministic.
func orderedMethods(schema *auth.AuthSchema, position map[auth.Method]*auth.SchemaNode) []auth.Method {
	if len(position) == 0 {
		return nil
	}

	methods := make([]auth.Method, 0, len(position))
	for _, method := range schema.Methods {
		if _, ok := position[method]; ok {
			methods = append(methods, method)
		}
	}

	// Methods nested below the first level may not appear in the
	// schema's top level list.
	for method := range position {
		if !containsMethod(methods, method) {
			methods = append(methods, method)
		}
	}

	return methods
}

// activeNode returns the tree node of the process's unended last step.
func activeNode(schema *auth.AuthSchema, process *auth.AuthProcess) *auth.SchemaNode {
	position := schema.Tree

	for i := range process.Steps {
		step := &process.Steps[i]
		var node *auth.SchemaNode
		if position != nil {
			node = position[step.Method]
		}
		if node == nil {
			return nil
		}
		if !step.Ended() {
			return node
		}
		position = node.Children
	}

	return nil
}

// branchFinished reports whether every outstanding condition below a
// node has already been achieved.
func branchFinished(node *auth.SchemaNode, process *auth.AuthProcess) bool {
	if node == nil {
		return false
	}
	if len(node.Children) == 0 {
		return true
	}

	for _, child := range node.Children {
		if child.Condition == "" || !process.HasCondition(child.Condition) {
			return false
		}
		if !branchFinished(child, process) {
			return false
		}
	}

	return true
}

func containsMethod(methods []auth.Method, method auth.Method) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
