// Package orchestrator drives the per process authentication state
// machine: creating processes, sequencing steps through a schema tree,
// enforcing attempt and TTL limits, and resolving result codes.
package orchestrator

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/processcode"
	"github.com/eidcore/authsteps/internal/strategy"
)

type service struct {
	logger       log.Logger
	repoMngr     auth.RepositoryManager
	strategies   *strategy.Registry
	checks       auth.CheckService
	admissionTTL time.Duration
}

// GetAuthMethods resolves a schema code, creates or loads the device's
// processing record, evaluates admission shortcuts, runs pre condition
// checks, and reports the eligible methods at the current tree position.
func (s *service) GetAuthMethods(ctx context.Context, req auth.GetAuthMethodsRequest) (*auth.AuthMethodsResponse, error) {
	if req.Headers.MobileUID == "" {
		return nil, auth.ErrBadRequest("device identifier is required")
	}

	strat, canonical, err := s.strategies.Resolve(req.SchemaCode)
	if err != nil {
		return nil, err
	}

	if strat.IsUserRequired() && req.User == nil {
		return nil, auth.ErrBadRequest("user is required for this schema")
	}

	schema, err := s.repoMngr.Schema().ByCode(ctx, canonical)
	if err != nil {
		return nil, err
	}

	process, err := s.resolveProcess(ctx, req, canonical)
	if err != nil {
		return nil, err
	}

	if len(process.Steps) == 0 && !process.IsRevoked {
		skipped, err := s.evaluateSkip(ctx, schema, process, req.User)
		if err != nil {
			return nil, err
		}
		if skipped {
			return &auth.AuthMethodsResponse{
				ProcessID:       process.ID,
				Title:           schema.Title,
				SkipAuthMethods: true,
			}, nil
		}
	}

	var carried auth.ProcessCode
	if len(process.Steps) == 0 {
		carried, err = s.runChecks(ctx, schema, req.User, req.Headers)
		if err != nil {
			return nil, err
		}
	}

	methods, err := eligibleMethods(schema, strat, process)
	if err != nil {
		return nil, err
	}

	return &auth.AuthMethodsResponse{
		ProcessID:   process.ID,
		Title:       schema.Title,
		AuthMethods: methods,
		ProcessCode: carried,
	}, nil
}

// SetStepMethod selects the method for the next verification. Retrying
// the same method counts another attempt and resets its verification
// counter; a different method starts a fresh step.
func (s *service) SetStepMethod(ctx context.Context, req auth.SetStepMethodRequest) (*auth.AuthSchema, *auth.AuthProcess, error) {
	strat, schema, process, err := s.loadProcessing(ctx, req.ProcessID, req.Headers.MobileUID)
	if err != nil {
		return nil, nil, err
	}

	last := process.LastStep()
	if last != nil && !last.Ended() && last.Method == req.Method {
		last.Attempts++
		last.VerifyAttempts = 0
	} else {
		process.Steps = append(process.Steps, auth.Step{
			Method:         req.Method,
			Attempts:       1,
			VerifyAttempts: 0,
			StartDate:      time.Now().UTC(),
		})
	}

	if err = s.updateProcessing(ctx, process); err != nil {
		return nil, nil, err
	}

	err = s.validateSteps(ctx, schema, strat, process, req.Method, req.User, req.Headers, false)
	if err != nil {
		s.failOtherProcessing(ctx, process.MobileUID, process.ID)
		return nil, nil, err
	}

	return schema, process, nil
}

// VerifyAuthMethod verifies the active step through the schema's
// strategy and resolves the caller facing result code.
func (s *service) VerifyAuthMethod(ctx context.Context, req auth.VerifyAuthMethodRequest) (auth.ProcessCode, error) {
	strat, schema, process, err := s.loadProcessing(ctx, req.ProcessID, req.Headers.MobileUID)
	if err != nil {
		return 0, err
	}

	last := process.LastStep()
	if last == nil {
		return 0, auth.ErrAccessDenied{
			Reason: "process has no steps to verify",
			Result: auth.ProcessCodeAuthFailed,
		}
	}

	last.VerifyAttempts++
	if err = s.updateProcessing(ctx, process); err != nil {
		return 0, err
	}

	err = s.validateSteps(ctx, schema, strat, process, req.Method, req.User, req.Headers, false)
	if err != nil {
		return 0, s.verifyFailed(ctx, schema, strat, process, req, err)
	}

	conditions, err := strat.Verify(ctx, auth.VerifyInput{
		Method:    req.Method,
		RequestID: req.RequestID,
		Process:   process,
		User:      req.User,
		Headers:   req.Headers,
		Params:    req.Params,
	})
	if err != nil {
		return 0, s.verifyFailed(ctx, schema, strat, process, req, err)
	}

	for _, condition := range conditions {
		if !process.HasCondition(condition) {
			process.Conditions = append(process.Conditions, condition)
		}
	}

	previousStatus := process.Status
	s.recomputeStatus(schema, process)

	if err = s.updateProcessing(ctx, process); err != nil {
		return 0, err
	}

	if process.Status == auth.StatusSuccess && strat.CompleteOnSuccess() {
		if err = s.promoteCompleted(ctx, process.ID); err != nil {
			return 0, err
		}
		process.Status = auth.StatusCompleted
	}

	status := process.Status
	if status == "" {
		status = previousStatus
	}

	return processcode.OnVerify(status, process.LastStep(), strat.ProcessCodes())
}

// CompleteSteps promotes the most recent successful process for any of
// the given schemas to completed.
func (s *service) CompleteSteps(ctx context.Context, codes []auth.SchemaCode, mobileUID, userIdentifier string) (*auth.AuthProcess, error) {
	process, err := s.repoMngr.Process().LatestSuccessful(ctx, mobileUID, userIdentifier, codes)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(auth.ErrNotFound("no successful process found"), err.Error())
	}
	if err != nil {
		return nil, err
	}

	process.SetStatus(auth.StatusCompleted)

	matched, err := s.repoMngr.Process().Update(ctx, process, auth.StatusSuccess)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, errors.Wrap(
			auth.ErrNotFound("process was completed concurrently"),
			"zero records matched on completion",
		)
	}

	return process, nil
}

// VerifyCompleted reports whether a successful process exists for the
// schema without mutating it.
func (s *service) VerifyCompleted(ctx context.Context, code auth.SchemaCode, mobileUID, userIdentifier string) error {
	_, err := s.repoMngr.Process().LatestSuccessful(ctx, mobileUID, userIdentifier, []auth.SchemaCode{code})
	if err == sql.ErrNoRows {
		return errors.Wrap(auth.ErrNotFound("no successful process found"), err.Error())
	}

	return err
}

// RevokeAdmissions revokes every historical process matching the
// schema's admission rules, closing the cross schema shortcut.
func (s *service) RevokeAdmissions(ctx context.Context, code auth.SchemaCode, userIdentifier string) error {
	schema, err := s.repoMngr.Schema().ByCode(ctx, code)
	if err != nil {
		return err
	}

	count, err := s.repoMngr.Process().RevokeMatching(ctx, userIdentifier, schema.AdmitAfter)
	if err != nil {
		return err
	}

	level.Debug(s.logger).Log(
		"source", "StepService.RevokeAdmissions",
		"message", "admission processes revoked",
		"schema_code", code,
		"count", count,
	)

	return nil
}

// resolveProcess creates a fresh processing record, or loads the one
// the client is resuming. A fresh record fails every other processing
// record for the device in the background.
func (s *service) resolveProcess(ctx context.Context, req auth.GetAuthMethodsRequest, canonical auth.SchemaCode) (*auth.AuthProcess, error) {
	if req.ProcessID != "" {
		process, err := s.repoMngr.Process().ProcessingByID(ctx, req.ProcessID, req.Headers.MobileUID, canonical)
		if err == sql.ErrNoRows {
			return nil, errors.Wrap(auth.ErrNotFound("auth process not found"), err.Error())
		}
		if err != nil {
			return nil, err
		}
		return process, nil
	}

	process := &auth.AuthProcess{
		Code:      canonical,
		MobileUID: req.Headers.MobileUID,
	}
	if req.User != nil {
		process.UserIdentifier = req.User.Identifier
	}

	if err := s.repoMngr.Process().Create(ctx, process); err != nil {
		return nil, err
	}

	s.failOtherProcessing(ctx, process.MobileUID, process.ID)

	return process, nil
}

// evaluateSkip auto promotes a steplesss process when the schema has
// no methods, or when an admission rule matches a recently completed
// process within the admission window.
func (s *service) evaluateSkip(ctx context.Context, schema *auth.AuthSchema, process *auth.AuthProcess, user *auth.User) (bool, error) {
	if len(schema.Methods) == 0 {
		process.SetStatus(auth.StatusSuccess)
		return true, s.updateProcess(ctx, process, auth.StatusProcessing)
	}

	if len(schema.AdmitAfter) == 0 {
		return false, nil
	}

	userIdentifier := process.UserIdentifier
	if userIdentifier == "" && user != nil {
		userIdentifier = user.Identifier
	}
	if userIdentifier == "" {
		return false, nil
	}

	admitting, err := s.repoMngr.Process().LatestAdmitting(ctx, userIdentifier, schema.AdmitAfter)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !s.withinAdmissionWindow(admitting, schema.AdmitAfter) {
		return false, nil
	}

	process.AdmittedAfterID = admitting.ID
	process.SetStatus(auth.StatusSuccess)
	return true, s.updateProcess(ctx, process, auth.StatusProcessing)
}

// withinAdmissionWindow compares the matching status history entry of
// an admitting process against the admission TTL.
func (s *service) withinAdmissionWindow(admitting *auth.AuthProcess, rules []auth.AdmitRule) bool {
	for _, rule := range rules {
		if rule.Code != admitting.Code {
			continue
		}

		want := rule.AdmitAfterStatus
		if want == "" {
			want = auth.StatusSuccess
		}

		if date, ok := admitting.StatusDate(want); ok {
			if time.Since(date) <= s.admissionTTL {
				return true
			}
		}
	}

	return false
}

// recomputeStatus re-walks the schema tree against completed steps and
// achieved conditions. A finished branch ends the active step and
// promotes the process.
func (s *service) recomputeStatus(schema *auth.AuthSchema, process *auth.AuthProcess) {
	node := activeNode(schema, process)
	if node == nil {
		return
	}

	last := process.LastStep()
	if last == nil || last.Ended() {
		return
	}

	if node.Condition != "" && !process.HasCondition(node.Condition) {
		return
	}

	now := time.Now().UTC()
	last.EndDate = &now

	if branchFinished(node, process) {
		process.SetStatus(auth.StatusSuccess)
	}
}

// promoteCompleted re-verifies success through an independent query
// before promoting, defending against concurrent completion races.
func (s *service) promoteCompleted(ctx context.Context, processID string) error {
	fresh, err := s.repoMngr.Process().ByID(ctx, processID)
	if err != nil {
		return err
	}

	if fresh.Status != auth.StatusSuccess {
		return errors.Errorf("process %s is no longer successful", processID)
	}

	fresh.SetStatus(auth.StatusCompleted)

	matched, err := s.repoMngr.Process().Update(ctx, fresh, auth.StatusSuccess)
	if err != nil {
		return err
	}
	if matched == 0 {
		return errors.Errorf("process %s was completed concurrently", processID)
	}

	return nil
}

// verifyFailed handles any rejection raised while verifying a step.
// Validation is re-run with the last attempt flag to decide whether
// this failure consumed the final allowed attempt, every other
// processing record for the device is failed, and the rejection is
// re-thrown with its carried result code.
func (s *service) verifyFailed(
	ctx context.Context,
	schema *auth.AuthSchema,
	strat auth.Strategy,
	process *auth.AuthProcess,
	req auth.VerifyAuthMethodRequest,
	cause error,
) error {
	err := s.validateSteps(ctx, schema, strat, process, req.Method, req.User, req.Headers, true)
	if err != nil {
		cause = err
	}

	s.failOtherProcessing(ctx, process.MobileUID, process.ID)

	if _, ok := auth.ErrorProcessCode(cause); ok {
		return cause
	}

	return errors.Wrap(auth.ErrAccessDenied{
		Reason: "authentication was not confirmed",
		Result: auth.ProcessCodeAuthFailed,
	}, cause.Error())
}

// failOtherProcessing fails every other processing record for a device
// in the background. Failures are logged, never surfaced.
func (s *service) failOtherProcessing(ctx context.Context, mobileUID, excludeID string) {
	go func() {
		count, err := s.repoMngr.Process().FailProcessing(context.Background(), mobileUID, excludeID)
		if err != nil {
			level.Error(s.logger).Log(
				"source", "StepService.failOtherProcessing",
				"message", "failed to fail processing records",
				"mobile_uid", mobileUID,
				"error", err,
			)
			return
		}

		if count > 0 {
			level.Debug(s.logger).Log(
				"source", "StepService.failOtherProcessing",
				"message", "stale processing records failed",
				"mobile_uid", mobileUID,
				"count", count,
			)
		}
	}()
}

func (s *service) loadProcessing(ctx context.Context, processID, mobileUID string) (auth.Strategy, *auth.AuthSchema, *auth.AuthProcess, error) {
	if processID == "" {
		return nil, nil, nil, auth.ErrBadRequest("process ID is required")
	}

	process, err := s.repoMngr.Process().ProcessingByID(ctx, processID, mobileUID)
	if err == sql.ErrNoRows {
		return nil, nil, nil, errors.Wrap(auth.ErrNotFound("auth process not found"), err.Error())
	}
	if err != nil {
		return nil, nil, nil, err
	}

	strat, canonical, err := s.strategies.Resolve(process.Code)
	if err != nil {
		return nil, nil, nil, err
	}

	schema, err := s.repoMngr.Schema().ByCode(ctx, canonical)
	if err != nil {
		return nil, nil, nil, err
	}

	return strat, schema, process, nil
}

func (s *service) updateProcessing(ctx context.Context, process *auth.AuthProcess) error {
	return s.updateProcess(ctx, process, auth.StatusProcessing)
}

// updateProcess writes a process conditionally on its previously read
// status, reporting a lost race as not found.
func (s *service) updateProcess(ctx context.Context, process *auth.AuthProcess, expect auth.Status) error {
	matched, err := s.repoMngr.Process().Update(ctx, process, expect)
	if err != nil {
		return err
	}
	if matched == 0 {
		return errors.Wrap(
			auth.ErrNotFound("auth process was modified concurrently"),
			"zero records matched on update",
		)
	}

	return nil
}
