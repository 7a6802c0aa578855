package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkessler/virtlab/internal/sshclient"
)

const (
	// defaultStepTimeout bounds setup steps without an explicit timeout.
	defaultStepTimeout = 30 * time.Second
	// defaultProbeTimeout bounds the remote probes behind assertions.
	defaultProbeTimeout = 15 * time.Second
)

// Executor runs one-shot commands on the target VM. Satisfied by
// *sshclient.Runner in production and by mocks in tests.
type Executor interface {
	Execute(ctx context.Context, cred sshclient.Credential, command string, timeout time.Duration) sshclient.Result
}

// AssertionResult is the outcome of one independently evaluated assertion.
// On failure, Field names the mismatched property and Observed/Expected
// carry both sides of the comparison.
type AssertionResult struct {
	Kind        string
	Description string
	Passed      bool
	Field       string
	Observed    string
	Expected    string
	Detail      string
}

// Report is the outcome of one validation run. It is recomputed on every
// run, never cached.
type Report struct {
	RunID         string
	ChallengeID   string
	ChallengeName string
	StartedAt     time.Time
	FinishedAt    time.Time

	// Passed is the AND of all assertion results.
	Passed  bool
	Results []AssertionResult

	// Score is the achieved score: the challenge score minus hint
	// deductions when passed, zero otherwise.
	Score     int
	MaxScore  int
	HintsUsed int
}

// Engine drives challenge setup and validation through an Executor.
type Engine struct {
	exec Executor
	log  zerolog.Logger
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given executor.
func NewEngine(exec Executor, log zerolog.Logger) *Engine {
	return &Engine{exec: exec, log: log, now: time.Now}
}

// Run executes a challenge: setup steps in declared order, the simulated
// action if any, then every assertion. A failing setup step aborts with
// ErrSetupFailed. Assertions never short-circuit; the report always
// covers all of them. hints may be nil.
func (e *Engine) Run(ctx context.Context, cred sshclient.Credential, def *Definition, hints *HintTracker) (Report, error) {
	report := Report{
		RunID:         uuid.NewString(),
		ChallengeID:   def.ID,
		ChallengeName: def.Name,
		StartedAt:     e.now(),
		MaxScore:      def.Score,
	}

	e.log.Info().Str("challenge", def.ID).Str("run_id", report.RunID).Msg("starting challenge run")

	for i, step := range def.Setup {
		if err := e.runStep(ctx, cred, step); err != nil {
			return report, fmt.Errorf("%w: setup step %d (%q): %v", ErrSetupFailed, i+1, step.Command, err)
		}
	}
	if def.SimulatedAction != nil {
		if err := e.runStep(ctx, cred, *def.SimulatedAction); err != nil {
			return report, fmt.Errorf("%w: simulated action (%q): %v", ErrSetupFailed, def.SimulatedAction.Command, err)
		}
	}

	report.Passed = true
	for i := range def.Validation {
		result := e.evaluate(ctx, cred, &def.Validation[i])
		report.Results = append(report.Results, result)
		if !result.Passed {
			report.Passed = false
		}
		e.log.Debug().
			Str("challenge", def.ID).
			Str("assertion", result.Description).
			Bool("passed", result.Passed).
			Msg("assertion evaluated")
	}

	report.FinishedAt = e.now()
	if hints != nil {
		report.HintsUsed = hints.Revealed()
	}
	if report.Passed {
		score := def.Score
		if hints != nil {
			score -= hints.Deduction()
		}
		if score < 0 {
			score = 0
		}
		report.Score = score
	}

	e.log.Info().
		Str("challenge", def.ID).
		Str("run_id", report.RunID).
		Bool("passed", report.Passed).
		Int("score", report.Score).
		Msg("challenge run finished")
	return report, nil
}

// runStep executes one setup command. A transport error or a non-zero
// exit is a setup failure.
func (e *Engine) runStep(ctx context.Context, cred sshclient.Credential, step Step) error {
	timeout := defaultStepTimeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}

	res := e.exec.Execute(ctx, cred, step.Command, timeout)
	if res.Err != nil {
		return res.Err
	}
	if res.ExitStatus != 0 {
		return fmt.Errorf("exit status %d: %s", res.ExitStatus, res.Stderr)
	}
	return nil
}
