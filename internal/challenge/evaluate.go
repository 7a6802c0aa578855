package challenge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mkessler/virtlab/internal/sshclient"
)

// evaluate runs one assertion against the VM. Transport failures are
// recorded as failed results with field "connection" rather than aborting
// the run, so one unreachable probe still yields a complete report.
func (e *Engine) evaluate(ctx context.Context, cred sshclient.Credential, a *Assertion) AssertionResult {
	result := AssertionResult{Kind: a.Kind, Description: a.description()}

	switch a.Kind {
	case KindRunCommand:
		e.evalRunCommand(ctx, cred, a.RunCommand, &result)
	case KindServiceStatus:
		e.evalServiceStatus(ctx, cred, a.ServiceStatus, &result)
	case KindPortListening:
		e.evalPortListening(ctx, cred, a.PortListening, &result)
	case KindFileExists:
		e.evalFileExists(ctx, cred, a.FileExists, &result)
	case KindFileContains:
		e.evalFileContains(ctx, cred, a.FileContains, &result)
	case KindUserGroup:
		e.evalUserGroup(ctx, cred, a.UserGroup, &result)
	case KindCommandCount:
		e.evalCommandCount(ctx, cred, a.CommandCount, &result)
	case KindHistory:
		e.evalHistory(ctx, cred, a.History, &result)
	default:
		result.fail("type", a.Kind, "a supported assertion type", "unknown assertion type")
	}

	return result
}

func (r *AssertionResult) pass() {
	r.Passed = true
}

func (r *AssertionResult) fail(field, observed, expected, detail string) {
	r.Passed = false
	r.Field = field
	r.Observed = observed
	r.Expected = expected
	r.Detail = detail
}

func (r *AssertionResult) failConnection(err error) {
	r.fail("connection", err.Error(), "reachable VM", "probe could not run")
}

// probe runs one remote command on behalf of an assertion.
func (e *Engine) probe(ctx context.Context, cred sshclient.Credential, command string) sshclient.Result {
	return e.exec.Execute(ctx, cred, command, defaultProbeTimeout)
}

func (e *Engine) evalRunCommand(ctx context.Context, cred sshclient.Credential, a *RunCommandAssertion, result *AssertionResult) {
	timeout := defaultProbeTimeout
	if a.TimeoutSeconds > 0 {
		timeout = time.Duration(a.TimeoutSeconds) * time.Second
	}
	res := e.exec.Execute(ctx, cred, a.Command, timeout)
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	if a.ExitStatus != nil && res.ExitStatus != *a.ExitStatus {
		result.fail("exit_status",
			strconv.Itoa(res.ExitStatus), strconv.Itoa(*a.ExitStatus),
			strings.TrimSpace(res.Stderr))
		return
	}
	if !matchStream(res.Stdout, a.StdoutEquals, a.StdoutContains, a.StdoutMatches) {
		result.fail("stdout", strings.TrimSpace(res.Stdout), expectedStream(a.StdoutEquals, a.StdoutContains, a.StdoutMatches), "")
		return
	}
	if !matchStream(res.Stderr, a.StderrEquals, a.StderrContains, a.StderrMatches) {
		result.fail("stderr", strings.TrimSpace(res.Stderr), expectedStream(a.StderrEquals, a.StderrContains, a.StderrMatches), "")
		return
	}
	result.pass()
}

// matchStream applies the single configured match mode to a stream.
// Exact matching ignores the trailing newline most commands emit.
func matchStream(stream, equals, contains, matches string) bool {
	switch {
	case equals != "":
		return strings.TrimRight(stream, "\n") == equals
	case contains != "":
		return strings.Contains(stream, contains)
	case matches != "":
		// Pattern validity was checked at load time.
		return regexp.MustCompile(matches).MatchString(stream)
	default:
		return true
	}
}

func expectedStream(equals, contains, matches string) string {
	switch {
	case equals != "":
		return equals
	case contains != "":
		return "contains " + strconv.Quote(contains)
	case matches != "":
		return "matches " + strconv.Quote(matches)
	default:
		return ""
	}
}

func (e *Engine) evalServiceStatus(ctx context.Context, cred sshclient.Credential, a *ServiceStatusAssertion, result *AssertionResult) {
	res := e.probe(ctx, cred, "systemctl is-active "+shellQuote(a.Service))
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	observedState := strings.TrimSpace(res.Stdout)
	observedActive := observedState == "active"
	if observedActive != *a.ExpectedState {
		result.fail("active", observedState, stateWord(*a.ExpectedState, "active", "inactive"),
			fmt.Sprintf("service %s", a.Service))
		return
	}

	if a.Enabled != nil {
		res := e.probe(ctx, cred, "systemctl is-enabled "+shellQuote(a.Service))
		if res.Err != nil {
			result.failConnection(res.Err)
			return
		}
		observed := strings.TrimSpace(res.Stdout)
		if (observed == "enabled") != *a.Enabled {
			result.fail("enabled", observed, stateWord(*a.Enabled, "enabled", "disabled"),
				fmt.Sprintf("service %s", a.Service))
			return
		}
	}
	result.pass()
}

func (e *Engine) evalPortListening(ctx context.Context, cred sshclient.Credential, a *PortListeningAssertion, result *AssertionResult) {
	flag := "-lnt"
	if a.protocol() == "udp" {
		flag = "-lnu"
	}
	res := e.probe(ctx, cred, "ss -H "+flag)
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	observed := portListening(res.Stdout, a.Port)
	if observed != *a.ExpectedState {
		result.fail("listening",
			strconv.FormatBool(observed), strconv.FormatBool(*a.ExpectedState),
			fmt.Sprintf("%s port %d", a.protocol(), a.Port))
		return
	}
	result.pass()
}

// portListening scans socket-table output for a local address ending in
// the port. Matching on the suffix covers 0.0.0.0:PORT, [::]:PORT, and
// interface-bound listeners alike.
func portListening(socketTable string, port int) bool {
	suffix := ":" + strconv.Itoa(port)
	for _, line := range strings.Split(socketTable, "\n") {
		for _, field := range strings.Fields(line) {
			if strings.HasSuffix(field, suffix) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) evalFileExists(ctx context.Context, cred sshclient.Credential, a *FileExistsAssertion, result *AssertionResult) {
	res := e.probe(ctx, cred, "stat -c '%F|%U|%G|%a' -- "+shellQuote(a.Path))
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	exists := res.ExitStatus == 0
	if exists != *a.ExpectedState {
		result.fail("exists",
			strconv.FormatBool(exists), strconv.FormatBool(*a.ExpectedState),
			a.Path)
		return
	}
	if !exists {
		// Expected absent and it is; nothing more to check.
		result.pass()
		return
	}

	parts := strings.SplitN(strings.TrimSpace(res.Stdout), "|", 4)
	if len(parts) != 4 {
		result.fail("stat", strings.TrimSpace(res.Stdout), "type|owner|group|mode", "unexpected stat output")
		return
	}
	fileType, owner, group, mode := statFileType(parts[0]), parts[1], parts[2], parts[3]

	if a.FileType != "" && fileType != a.FileType {
		result.fail("file_type", fileType, a.FileType, a.Path)
		return
	}
	if a.Owner != "" && owner != a.Owner {
		result.fail("owner", owner, a.Owner, a.Path)
		return
	}
	if a.Group != "" && group != a.Group {
		result.fail("group", group, a.Group, a.Path)
		return
	}
	if a.Mode != "" && !sameMode(mode, a.Mode) {
		result.fail("mode", mode, a.Mode, a.Path)
		return
	}
	result.pass()
}

// statFileType maps stat's %F wording onto the definition vocabulary.
func statFileType(statType string) string {
	switch statType {
	case "regular file", "regular empty file":
		return "file"
	case "directory":
		return "directory"
	case "symbolic link":
		return "symlink"
	default:
		return statType
	}
}

// sameMode compares octal permission strings ignoring leading zeros.
func sameMode(a, b string) bool {
	x, errA := strconv.ParseUint(a, 8, 32)
	y, errB := strconv.ParseUint(b, 8, 32)
	return errA == nil && errB == nil && x == y
}

func (e *Engine) evalFileContains(ctx context.Context, cred sshclient.Credential, a *FileContainsAssertion, result *AssertionResult) {
	res := e.probe(ctx, cred, "cat -- "+shellQuote(a.Path))
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}
	if res.ExitStatus != 0 {
		// An unreadable file cannot contain the content.
		if !*a.ExpectedState {
			result.pass()
			return
		}
		result.fail("exists", "false", "true", "file is missing or unreadable: "+a.Path)
		return
	}

	var observed bool
	if a.Contains != "" {
		observed = strings.Contains(res.Stdout, a.Contains)
	} else {
		observed = regexp.MustCompile(a.Matches).MatchString(res.Stdout)
	}
	if observed != *a.ExpectedState {
		result.fail("contains",
			strconv.FormatBool(observed), strconv.FormatBool(*a.ExpectedState),
			a.Path)
		return
	}
	result.pass()
}

func (e *Engine) evalUserGroup(ctx context.Context, cred sshclient.Credential, a *UserGroupAssertion, result *AssertionResult) {
	res := e.probe(ctx, cred, "getent passwd "+shellQuote(a.User))
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	exists := res.ExitStatus == 0
	if exists != *a.ExpectedState {
		result.fail("exists",
			strconv.FormatBool(exists), strconv.FormatBool(*a.ExpectedState),
			"user "+a.User)
		return
	}
	if !exists {
		result.pass()
		return
	}

	if a.Shell != "" {
		fields := strings.Split(strings.TrimSpace(res.Stdout), ":")
		shell := fields[len(fields)-1]
		if shell != a.Shell {
			result.fail("shell", shell, a.Shell, "user "+a.User)
			return
		}
	}

	if a.Group != "" {
		res := e.probe(ctx, cred, "id -nG "+shellQuote(a.User))
		if res.Err != nil {
			result.failConnection(res.Err)
			return
		}
		member := false
		for _, g := range strings.Fields(res.Stdout) {
			if g == a.Group {
				member = true
				break
			}
		}
		if !member {
			result.fail("group", strings.TrimSpace(res.Stdout), a.Group, "user "+a.User)
			return
		}
	}
	result.pass()
}

func (e *Engine) evalCommandCount(ctx context.Context, cred sshclient.Credential, a *CommandCountAssertion, result *AssertionResult) {
	res := e.probe(ctx, cred, a.Command)
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	count, err := parseCount(res.Stdout)
	if err != nil {
		result.fail("count", strings.TrimSpace(res.Stdout), "a numeric count", err.Error())
		return
	}

	threshold, _ := ParseThreshold(a.Threshold)
	if !threshold.Met(count) {
		result.fail("count", strconv.Itoa(count), threshold.String(), a.Command)
		return
	}
	result.pass()
}

func (e *Engine) evalHistory(ctx context.Context, cred sshclient.Credential, a *HistoryAssertion, result *AssertionResult) {
	res := e.probe(ctx, cred, "grep -c -- "+shellQuote(a.Pattern)+" "+shellQuote(historyFile(a.user())))
	if res.Err != nil {
		result.failConnection(res.Err)
		return
	}

	// grep prints nothing when the history file is missing; treat that as
	// zero occurrences rather than a probe error.
	count, err := parseCount(res.Stdout)
	if err != nil {
		count = 0
	}

	threshold, _ := ParseThreshold(a.Threshold)
	if !threshold.Met(count) {
		result.fail("count", strconv.Itoa(count), threshold.String(),
			fmt.Sprintf("pattern %q in history of %s", a.Pattern, a.user()))
		return
	}
	result.pass()
}

func historyFile(user string) string {
	if user == "root" {
		return "/root/.bash_history"
	}
	return "/home/" + user + "/.bash_history"
}

func parseCount(stdout string) (int, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return 0, fmt.Errorf("empty probe output")
	}
	count, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("probe output is not a count: %q", trimmed)
	}
	return count, nil
}

func stateWord(want bool, yes, no string) string {
	if want {
		return yes
	}
	return no
}

// shellQuote single-quotes an argument for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
