package internal

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func TestLoadServerSettings_PromptsForMissingPortAndPersistsIt(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "relay.env")
	t.Setenv("PORT", "")

	// Given an operator answering the prompt
	in := strings.NewReader("4242\n")
	var out bytes.Buffer

	// When the settings load for the first time
	settings, err := LoadServerSettings(path, NewStdinPrompter(in, &out))

	// Then the answer is used and written back, property style
	req.NoError(err)
	req.Equal(4242, settings.Port)
	req.Contains(out.String(), "missing property 'PORT': ")

	// And the next run finds it in the file without prompting
	again, err := LoadServerSettings(path, nil)
	req.NoError(err)
	req.Equal(4242, again.Port)
}

func TestLoadServerSettings_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "9000")
	t.Setenv("HOST", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("HEALTH_INTERVAL", "")

	settings, err := LoadServerSettings("", nil)

	req.NoError(err)
	req.Equal("0.0.0.0", settings.Host)
	req.Equal("info", settings.LogLevel)
	req.Equal("*", settings.CensorChar)
	req.Equal(30*time.Second, settings.HealthInterval)
	req.False(settings.Cipher)
	req.Empty(settings.AuditDB)
	req.Equal("0.0.0.0:9000", settings.Addr())
}

func TestLoadServerSettings_RejectsOutOfRangePort(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "70000")

	_, err := LoadServerSettings("", nil)

	req.ErrorContains(err, "invalid settings")
}

func TestLoadServerSettings_MissingPortWithoutPrompterFails(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "")

	_, err := LoadServerSettings("", nil)

	req.ErrorContains(err, "missing property 'PORT'")
}

func TestLoadClientSettings_PromptsForEveryMandatoryKey(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "client.env")
	t.Setenv("SERVER_HOST", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SENDER_NAME", "")

	// Given answers for the three mandatory keys on one terminal
	in := strings.NewReader("127.0.0.1\n7777\nalice\n")
	var out bytes.Buffer

	settings, err := LoadClientSettings(path, NewStdinPrompter(in, &out))

	req.NoError(err)
	req.Equal("127.0.0.1", settings.ServerHost)
	req.Equal(7777, settings.ServerPort)
	req.Equal("alice", settings.SenderName)
	req.Equal("127.0.0.1:7777", settings.Addr())
	req.Contains(out.String(), "missing property 'SERVER_HOST': ")
	req.Contains(out.String(), "missing property 'SERVER_PORT': ")
	req.Contains(out.String(), "missing property 'SENDER_NAME': ")

	// And all three answers survive in the settings file
	vars, err := godotenv.Read(path)
	req.NoError(err)
	req.Equal("127.0.0.1", vars["SERVER_HOST"])
	req.Equal("7777", vars["SERVER_PORT"])
	req.Equal("alice", vars["SENDER_NAME"])
}

func TestLoadClientSettings_EnvironmentWinsOverFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "client.env")
	req.NoError(godotenv.Write(map[string]string{
		"SERVER_HOST": "10.0.0.1",
		"SERVER_PORT": "7777",
		"SENDER_NAME": "alice",
	}, path))
	t.Setenv("SERVER_HOST", "10.0.0.2")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SENDER_NAME", "")

	settings, err := LoadClientSettings(path, nil)

	req.NoError(err)
	req.Equal("10.0.0.2", settings.ServerHost)
	req.Equal(7777, settings.ServerPort)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("*")
	req.NoError(err)
	req.Equal('*', r)

	_, err = CharacterRune("ab")
	req.Error(err)

	_, err = CharacterRune("")
	req.Error(err)
}
