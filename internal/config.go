// Package internal holds the settings layer and the operator-facing debug
// tooling shared by the relay binaries.
package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// ServerSettings configures the relay process. Only the port is mandatory;
// everything else has a workable default or disables its feature when empty.
type ServerSettings struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT" validate:"required,gt=0,lte=65535"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	AuditDB         string        `env:"AUDIT_DB"`    // empty disables the audit trail
	CensorFile      string        `env:"CENSOR_FILE"` // empty disables moderation
	CensorChar      string        `env:"CENSOR_CHAR,default=*"`
	Cipher          bool          `env:"CIPHER,default=false"`
	PrimesFile      string        `env:"PRIMES_FILE,default=primes.txt"`
	PrimesLimit     int           `env:"PRIMES_LIMIT,default=16777216"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=30s"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
}

func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClientSettings configures the terminal client. The server address and the
// sender name are mandatory and prompted for when absent.
type ClientSettings struct {
	ServerHost  string `env:"SERVER_HOST" validate:"required"`
	ServerPort  int    `env:"SERVER_PORT" validate:"required,gt=0,lte=65535"`
	SenderName  string `env:"SENDER_NAME" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL,default=warn"`
	Cipher      bool   `env:"CIPHER,default=false"`
	PrimesFile  string `env:"PRIMES_FILE,default=primes.txt"`
	PrimesLimit int    `env:"PRIMES_LIMIT,default=16777216"`
	Colours     bool   `env:"COLOURS,default=true"`
}

func (s ClientSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.ServerHost, s.ServerPort)
}

var (
	serverMandatory = []string{"PORT"}
	clientMandatory = []string{"SERVER_HOST", "SERVER_PORT", "SENDER_NAME"}
)

// Prompter supplies values for mandatory settings absent from both the
// settings file and the environment.
type Prompter interface {
	Ask(key string) (string, error)
}

// StdinPrompter asks on the terminal, property style.
type StdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewStdinPrompter(in io.Reader, out io.Writer) *StdinPrompter {
	return &StdinPrompter{in: bufio.NewReader(in), out: out}
}

func (p *StdinPrompter) Ask(key string) (string, error) {
	fmt.Fprintf(p.out, "missing property '%s': ", key)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read property %q: %w", key, err)
	}
	return strings.TrimSpace(line), nil
}

func LoadServerSettings(path string, prompter Prompter) (ServerSettings, error) {
	var settings ServerSettings
	if err := load(path, prompter, serverMandatory, &settings); err != nil {
		return ServerSettings{}, err
	}
	return settings, nil
}

func LoadClientSettings(path string, prompter Prompter) (ClientSettings, error) {
	var settings ClientSettings
	if err := load(path, prompter, clientMandatory, &settings); err != nil {
		return ClientSettings{}, err
	}
	return settings, nil
}

// load merges the settings file with the process environment (the
// environment wins), asks for whatever mandatory keys are still missing and
// persists the answers back to the file so the next run starts quietly.
func load(path string, prompter Prompter, mandatory []string, out any) error {
	fileVars := map[string]string{}
	if path != "" {
		vars, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileVars = vars
		case os.IsNotExist(err):
			// first run, the file appears once the answers are in
		default:
			return fmt.Errorf("read settings %q: %w", path, err)
		}
	}

	merged, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	// An empty value is no value; left in, it would shadow the file and the
	// defaults.
	for key, value := range merged {
		if strings.TrimSpace(value) == "" {
			delete(merged, key)
		}
	}
	for key, value := range fileVars {
		if _, ok := merged[key]; ok || strings.TrimSpace(value) == "" {
			continue
		}
		merged[key] = value
	}

	asked := false
	for _, key := range mandatory {
		if _, ok := merged[key]; ok {
			continue
		}
		if prompter == nil {
			return fmt.Errorf("missing property '%s'", key)
		}
		value, err := prompter.Ask(key)
		if err != nil {
			return err
		}
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("missing property '%s'", key)
		}
		merged[key] = value
		fileVars[key] = value
		asked = true
	}
	if asked && path != "" {
		if err := godotenv.Write(fileVars, path); err != nil {
			return fmt.Errorf("persist settings %q: %w", path, err)
		}
	}

	if err := env.Unmarshal(merged, out); err != nil {
		return fmt.Errorf("settings error: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// CharacterRune converts a single-character setting into its rune.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSOR_CHAR must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
