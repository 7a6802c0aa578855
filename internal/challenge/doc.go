// Package challenge loads declarative challenge definitions and validates
// VM state against them over SSH.
//
// A definition is a structured-text document with setup steps, a required
// list of typed assertions, and optional hints. Parsing is fail-closed:
// unknown keys, missing required fields, and malformed assertion
// parameters are load errors, so a bad definition never reaches a VM.
//
// Validation runs setup steps in declared order, then evaluates every
// assertion independently. Assertions never short-circuit: a run always
// produces a full per-assertion report, and the overall verdict is the
// AND of all of them. A setup failure is an environment problem, reported
// as ErrSetupFailed, distinct from assertion failures which are ordinary
// learner-facing outcomes.
package challenge
