package doctor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmlago/parlo/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckAPIKeySet(t *testing.T) {
	t.Setenv("TEST_DOCTOR_API_KEY", "sk-123")

	cfg := config.Default()
	cfg.OpenAI.APIKeyEnv = "TEST_DOCTOR_API_KEY"

	check := checkAPIKey(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "TEST_DOCTOR_API_KEY is set")
}

func TestCheckAPIKeyMissing(t *testing.T) {
	t.Setenv("TEST_DOCTOR_API_KEY", "")

	cfg := config.Default()
	cfg.OpenAI.APIKeyEnv = "TEST_DOCTOR_API_KEY"

	check := checkAPIKey(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "is not set")
}

func TestCheckAPIKeyEmptyEnvName(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKeyEnv = ""

	check := checkAPIKey(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "api_key_env is empty")
}

func TestCheckEndpointDefault(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.BaseURL = ""

	check := checkEndpoint(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "default endpoint")
}

func TestCheckEndpointReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.OpenAI.BaseURL = server.URL

	check := checkEndpoint(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 404")
}

func TestCheckEndpointUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.BaseURL = "http://127.0.0.1:1"

	check := checkEndpoint(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "request failed")
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestCheckStateDirWritable(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	check := checkStateDir()
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "writable at")
}

func TestRunReportsDefaultsWhenConfigMissing(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	report := Run(config.Loaded{Config: config.Default(), Exists: false})
	require.NotEmpty(t, report.Checks)
	require.Equal(t, "config", report.Checks[0].Name)
	require.Contains(t, report.Checks[0].Message, "using defaults")
}
