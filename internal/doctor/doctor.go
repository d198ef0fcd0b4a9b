// Package doctor runs runtime readiness diagnostics for config, audio, and the speech API.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmlago/parlo/internal/audio"
	"github.com/jmlago/parlo/internal/config"
	"github.com/jmlago/parlo/internal/logging"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = "no config file, using defaults"
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime socket directory available", "XDG_RUNTIME_DIR is empty, control socket cannot be created"))

	checks = append(checks, checkAPIKey(cfg.Config))
	checks = append(checks, checkEndpoint(cfg.Config))
	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkStateDir())

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkAPIKey validates that the configured API key variable holds a value.
func checkAPIKey(cfg config.Config) Check {
	name := strings.TrimSpace(cfg.OpenAI.APIKeyEnv)
	if name == "" {
		return Check{Name: "openai.api_key", Pass: false, Message: "api_key_env is empty"}
	}
	if strings.TrimSpace(os.Getenv(name)) == "" {
		return Check{Name: "openai.api_key", Pass: false, Message: fmt.Sprintf("%s is not set", name)}
	}
	return Check{Name: "openai.api_key", Pass: true, Message: fmt.Sprintf("%s is set", name)}
}

// checkEndpoint probes a configured base URL override for reachability.
func checkEndpoint(cfg config.Config) Check {
	base := strings.TrimSpace(cfg.OpenAI.BaseURL)
	if base == "" {
		return Check{Name: "openai.endpoint", Pass: true, Message: "using default endpoint"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(base)
	if err != nil {
		return Check{Name: "openai.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	return Check{Name: "openai.endpoint", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkStateDir validates that the state directory is creatable and writable.
func checkStateDir() Check {
	dir, err := logging.StateDir()
	if err != nil {
		return Check{Name: "state.dir", Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "state.dir", Pass: false, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return Check{Name: "state.dir", Pass: false, Message: fmt.Sprintf("cannot write in %s: %v", dir, err)}
	}
	_ = os.Remove(probe)

	return Check{Name: "state.dir", Pass: true, Message: fmt.Sprintf("writable at %s", dir)}
}
