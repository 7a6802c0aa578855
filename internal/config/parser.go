// Package config provides configuration file parsing for the virtlab CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mkessler/virtlab/internal/sshclient"
)

// Config is the parsed virtlab configuration.
type Config struct {
	Libvirt    LibvirtConfig
	SSH        *SSHConfig
	Challenges *ChallengesConfig
}

// LibvirtConfig selects the hypervisor connection.
type LibvirtConfig struct {
	// SocketPath is the libvirt daemon socket. Empty selects the
	// system default socket.
	SocketPath     string
	ConnectTimeout time.Duration
}

// SSHConfig is the default credential for reaching practice VMs.
type SSHConfig struct {
	Host              string
	Port              int
	Username          string
	KeyPath           string
	Passphrase        string
	CommandTimeout    time.Duration
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration
}

// Credential converts the SSH section into a per-call credential.
func (s *SSHConfig) Credential() sshclient.Credential {
	return sshclient.Credential{
		Host:       s.Host,
		Port:       s.Port,
		User:       s.Username,
		KeyPath:    s.KeyPath,
		Passphrase: s.Passphrase,
	}
}

// ChallengesConfig locates challenge definition files.
type ChallengesConfig struct {
	Dir string
}

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*Config, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*Config, error) {
	cfg := &Config{}

	// Parse libvirt settings (optional, defaults to the system socket).
	cfg.Libvirt = LibvirtConfig{
		SocketPath:     p.expandEnv(p.v.GetString("libvirt.socket_path")),
		ConnectTimeout: p.v.GetDuration("libvirt.connect_timeout"),
	}
	if cfg.Libvirt.ConnectTimeout == 0 {
		cfg.Libvirt.ConnectTimeout = 5 * time.Second
	}

	// Parse optional SSH defaults.
	if p.v.IsSet("ssh") {
		cfg.SSH = &SSHConfig{
			Host:              p.v.GetString("ssh.host"),
			Port:              p.v.GetInt("ssh.port"),
			Username:          p.v.GetString("ssh.username"),
			KeyPath:           p.expandEnv(p.v.GetString("ssh.key_path")),
			Passphrase:        p.expandEnv(p.v.GetString("ssh.passphrase")),
			CommandTimeout:    p.v.GetDuration("ssh.command_timeout"),
			ReadyTimeout:      p.v.GetDuration("ssh.ready_timeout"),
			ReadyPollInterval: p.v.GetDuration("ssh.ready_poll_interval"),
		}

		if cfg.SSH.Host == "" {
			return nil, fmt.Errorf("ssh.host is required when ssh is configured")
		}
		if cfg.SSH.Username == "" {
			return nil, fmt.Errorf("ssh.username is required when ssh is configured")
		}
		if cfg.SSH.KeyPath == "" {
			return nil, fmt.Errorf("ssh.key_path is required when ssh is configured")
		}

		// Set defaults.
		if cfg.SSH.Port == 0 {
			cfg.SSH.Port = 22
		}
		if cfg.SSH.CommandTimeout == 0 {
			cfg.SSH.CommandTimeout = 30 * time.Second
		}
		if cfg.SSH.ReadyTimeout == 0 {
			cfg.SSH.ReadyTimeout = 2 * time.Minute
		}
		if cfg.SSH.ReadyPollInterval == 0 {
			cfg.SSH.ReadyPollInterval = 2 * time.Second
		}
	}

	// Parse optional challenge settings.
	if p.v.IsSet("challenges") {
		cfg.Challenges = &ChallengesConfig{
			Dir: p.expandEnv(p.v.GetString("challenges.dir")),
		}

		if cfg.Challenges.Dir == "" {
			return nil, fmt.Errorf("challenges.dir is required when challenges is configured")
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}
