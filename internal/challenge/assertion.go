package challenge

import (
	"bytes"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Assertion type tags as written in definition files.
const (
	KindRunCommand    = "run_command"
	KindServiceStatus = "check_service_status"
	KindPortListening = "check_port_listening"
	KindFileExists    = "check_file_exists"
	KindFileContains  = "check_file_contains"
	KindUserGroup     = "check_user_group"
	KindCommandCount  = "check_command"
	KindHistory       = "check_history"
)

// Assertion is a tagged union over the supported assertion kinds. Exactly
// one variant field is non-nil, matching Kind. Decoding is strict per
// kind: required parameters are validated at load time, never at
// evaluation time.
type Assertion struct {
	Kind string

	RunCommand    *RunCommandAssertion
	ServiceStatus *ServiceStatusAssertion
	PortListening *PortListeningAssertion
	FileExists    *FileExistsAssertion
	FileContains  *FileContainsAssertion
	UserGroup     *UserGroupAssertion
	CommandCount  *CommandCountAssertion
	History       *HistoryAssertion
}

// RunCommandAssertion runs a command and compares exit status and output.
// The stdout and stderr match modes are mutually exclusive per stream.
type RunCommandAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`

	ExitStatus     *int   `yaml:"exit_status,omitempty"`
	StdoutEquals   string `yaml:"stdout_equals,omitempty"`
	StdoutContains string `yaml:"stdout_contains,omitempty"`
	StdoutMatches  string `yaml:"stdout_matches,omitempty"`
	StderrEquals   string `yaml:"stderr_equals,omitempty"`
	StderrContains string `yaml:"stderr_contains,omitempty"`
	StderrMatches  string `yaml:"stderr_matches,omitempty"`
}

// ServiceStatusAssertion checks a systemd unit's active state and
// optionally its boot enablement.
type ServiceStatusAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	Service       string `yaml:"service"`
	ExpectedState *bool  `yaml:"expected_state"`
	Enabled       *bool  `yaml:"enabled,omitempty"`
}

// PortListeningAssertion checks the VM's socket table for a listener.
type PortListeningAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	Port          int    `yaml:"port"`
	Protocol      string `yaml:"protocol,omitempty"`
	ExpectedState *bool  `yaml:"expected_state"`
}

// FileExistsAssertion checks a path's existence and optionally its type,
// ownership, and permission bits.
type FileExistsAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	Path          string `yaml:"path"`
	ExpectedState *bool  `yaml:"expected_state"`
	FileType      string `yaml:"file_type,omitempty"`
	Owner         string `yaml:"owner,omitempty"`
	Group         string `yaml:"group,omitempty"`
	Mode          string `yaml:"mode,omitempty"`
}

// FileContainsAssertion checks file content by substring or pattern.
// Exactly one of contains and matches must be set.
type FileContainsAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	Path          string `yaml:"path"`
	Contains      string `yaml:"contains,omitempty"`
	Matches       string `yaml:"matches,omitempty"`
	ExpectedState *bool  `yaml:"expected_state"`
}

// UserGroupAssertion checks an account's existence and optionally its
// group membership and login shell.
type UserGroupAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	User          string `yaml:"user"`
	ExpectedState *bool  `yaml:"expected_state"`
	Group         string `yaml:"group,omitempty"`
	Shell         string `yaml:"shell,omitempty"`
}

// CommandCountAssertion runs a probe whose stdout is an occurrence count
// and compares it against a threshold expression.
type CommandCountAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	Command   string `yaml:"command"`
	Threshold string `yaml:"threshold,omitempty"`
}

// HistoryAssertion scans a user's shell history for a pattern and
// compares the match count against a threshold expression.
type HistoryAssertion struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	User      string `yaml:"user,omitempty"`
	Pattern   string `yaml:"pattern"`
	Threshold string `yaml:"threshold,omitempty"`
}

// assertionHead is the minimal shape needed to dispatch on the type tag.
type assertionHead struct {
	Type string `yaml:"type"`
}

// UnmarshalYAML dispatches on the type tag and strictly decodes the node
// into the matching variant. Unknown keys and unknown types are errors.
func (a *Assertion) UnmarshalYAML(node *yaml.Node) error {
	var head assertionHead
	if err := node.Decode(&head); err != nil {
		return err
	}
	if head.Type == "" {
		return fmt.Errorf("assertion is missing required field %q", "type")
	}

	a.Kind = head.Type
	switch head.Type {
	case KindRunCommand:
		a.RunCommand = &RunCommandAssertion{}
		return decodeStrict(node, a.RunCommand)
	case KindServiceStatus:
		a.ServiceStatus = &ServiceStatusAssertion{}
		return decodeStrict(node, a.ServiceStatus)
	case KindPortListening:
		a.PortListening = &PortListeningAssertion{}
		return decodeStrict(node, a.PortListening)
	case KindFileExists:
		a.FileExists = &FileExistsAssertion{}
		return decodeStrict(node, a.FileExists)
	case KindFileContains:
		a.FileContains = &FileContainsAssertion{}
		return decodeStrict(node, a.FileContains)
	case KindUserGroup:
		a.UserGroup = &UserGroupAssertion{}
		return decodeStrict(node, a.UserGroup)
	case KindCommandCount:
		a.CommandCount = &CommandCountAssertion{}
		return decodeStrict(node, a.CommandCount)
	case KindHistory:
		a.History = &HistoryAssertion{}
		return decodeStrict(node, a.History)
	default:
		return fmt.Errorf("unknown assertion type %q", head.Type)
	}
}

// decodeStrict re-decodes a node with unknown-key rejection. yaml.Node
// decoding has no KnownFields switch, so the node is round-tripped
// through a strict decoder.
func decodeStrict(node *yaml.Node, out interface{}) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// validate checks required parameters and mutual-exclusion rules per kind.
func (a *Assertion) validate() error {
	switch a.Kind {
	case KindRunCommand:
		return a.RunCommand.validate()
	case KindServiceStatus:
		return a.ServiceStatus.validate()
	case KindPortListening:
		return a.PortListening.validate()
	case KindFileExists:
		return a.FileExists.validate()
	case KindFileContains:
		return a.FileContains.validate()
	case KindUserGroup:
		return a.UserGroup.validate()
	case KindCommandCount:
		return a.CommandCount.validate()
	case KindHistory:
		return a.History.validate()
	default:
		return fmt.Errorf("unknown assertion type %q", a.Kind)
	}
}

func (r *RunCommandAssertion) validate() error {
	if r.Command == "" {
		return fmt.Errorf("run_command requires %q", "command")
	}

	stdoutModes := countSet(r.StdoutEquals, r.StdoutContains, r.StdoutMatches)
	if stdoutModes > 1 {
		return fmt.Errorf("run_command stdout match modes are mutually exclusive")
	}
	stderrModes := countSet(r.StderrEquals, r.StderrContains, r.StderrMatches)
	if stderrModes > 1 {
		return fmt.Errorf("run_command stderr match modes are mutually exclusive")
	}
	if r.ExitStatus == nil && stdoutModes == 0 && stderrModes == 0 {
		return fmt.Errorf("run_command declares no expectation")
	}

	if r.StdoutMatches != "" {
		if _, err := regexp.Compile(r.StdoutMatches); err != nil {
			return fmt.Errorf("run_command stdout pattern: %w", err)
		}
	}
	if r.StderrMatches != "" {
		if _, err := regexp.Compile(r.StderrMatches); err != nil {
			return fmt.Errorf("run_command stderr pattern: %w", err)
		}
	}
	return nil
}

func (s *ServiceStatusAssertion) validate() error {
	if s.Service == "" {
		return fmt.Errorf("check_service_status requires %q", "service")
	}
	if s.ExpectedState == nil {
		return fmt.Errorf("check_service_status requires %q", "expected_state")
	}
	return nil
}

func (p *PortListeningAssertion) validate() error {
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("check_port_listening port %d out of range", p.Port)
	}
	if p.Protocol != "" && p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("check_port_listening protocol must be tcp or udp, got %q", p.Protocol)
	}
	if p.ExpectedState == nil {
		return fmt.Errorf("check_port_listening requires %q", "expected_state")
	}
	return nil
}

func (f *FileExistsAssertion) validate() error {
	if f.Path == "" {
		return fmt.Errorf("check_file_exists requires %q", "path")
	}
	if f.ExpectedState == nil {
		return fmt.Errorf("check_file_exists requires %q", "expected_state")
	}
	switch f.FileType {
	case "", "file", "directory", "symlink":
	default:
		return fmt.Errorf("check_file_exists file_type must be file, directory, or symlink, got %q", f.FileType)
	}
	if f.Mode != "" && !modePattern.MatchString(f.Mode) {
		return fmt.Errorf("check_file_exists mode must be octal like 0644, got %q", f.Mode)
	}
	return nil
}

func (f *FileContainsAssertion) validate() error {
	if f.Path == "" {
		return fmt.Errorf("check_file_contains requires %q", "path")
	}
	if countSet(f.Contains, f.Matches) != 1 {
		return fmt.Errorf("check_file_contains requires exactly one of %q or %q", "contains", "matches")
	}
	if f.ExpectedState == nil {
		return fmt.Errorf("check_file_contains requires %q", "expected_state")
	}
	if f.Matches != "" {
		if _, err := regexp.Compile(f.Matches); err != nil {
			return fmt.Errorf("check_file_contains pattern: %w", err)
		}
	}
	return nil
}

func (u *UserGroupAssertion) validate() error {
	if u.User == "" {
		return fmt.Errorf("check_user_group requires %q", "user")
	}
	if u.ExpectedState == nil {
		return fmt.Errorf("check_user_group requires %q", "expected_state")
	}
	return nil
}

func (c *CommandCountAssertion) validate() error {
	if c.Command == "" {
		return fmt.Errorf("check_command requires %q", "command")
	}
	if _, err := ParseThreshold(c.Threshold); err != nil {
		return fmt.Errorf("check_command: %w", err)
	}
	return nil
}

func (h *HistoryAssertion) validate() error {
	if h.Pattern == "" {
		return fmt.Errorf("check_history requires %q", "pattern")
	}
	if _, err := ParseThreshold(h.Threshold); err != nil {
		return fmt.Errorf("check_history: %w", err)
	}
	return nil
}

var modePattern = regexp.MustCompile(`^0?[0-7]{3,4}$`)

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

// description returns the author's description or a derived summary.
func (a *Assertion) description() string {
	var explicit, derived string
	switch a.Kind {
	case KindRunCommand:
		explicit, derived = a.RunCommand.Description, fmt.Sprintf("run %q", a.RunCommand.Command)
	case KindServiceStatus:
		explicit, derived = a.ServiceStatus.Description, fmt.Sprintf("service %s state", a.ServiceStatus.Service)
	case KindPortListening:
		explicit, derived = a.PortListening.Description, fmt.Sprintf("%s port %d listening", a.PortListening.protocol(), a.PortListening.Port)
	case KindFileExists:
		explicit, derived = a.FileExists.Description, fmt.Sprintf("file %s exists", a.FileExists.Path)
	case KindFileContains:
		explicit, derived = a.FileContains.Description, fmt.Sprintf("file %s content", a.FileContains.Path)
	case KindUserGroup:
		explicit, derived = a.UserGroup.Description, fmt.Sprintf("user %s", a.UserGroup.User)
	case KindCommandCount:
		explicit, derived = a.CommandCount.Description, fmt.Sprintf("count from %q", a.CommandCount.Command)
	case KindHistory:
		explicit, derived = a.History.Description, fmt.Sprintf("history of %s", a.History.user())
	}
	if explicit != "" {
		return explicit
	}
	return derived
}

func (p *PortListeningAssertion) protocol() string {
	if p.Protocol == "" {
		return "tcp"
	}
	return p.Protocol
}

func (h *HistoryAssertion) user() string {
	if h.User == "" {
		return "root"
	}
	return h.User
}
