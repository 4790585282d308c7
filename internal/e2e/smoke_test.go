package e2e

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/AAA-1" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer smoke-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"key":"AAA-1","fields":{"summary":"Smoke"}}`)
	}))
	t.Cleanup(server.Close)

	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeAccountsFixture(home, server.URL))

	stdout, stderr, err := runJM(t, binaryPath, home, "account", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "smoke")

	stdout, stderr, err = runJM(t, binaryPath, home, "issue", "get", "AAA-1", "--json")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, `"account": "smoke"`)
	assert.Contains(t, stdout, "Smoke")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "jm-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/jm")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build jm binary: %s", string(output))
	return binaryPath
}

func runJM(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "JM_SMOKE_TOKEN=smoke-token")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeAccountsFixture(home, host string) error {
	configDir := filepath.Join(home, ".jira-master")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	accounts := fmt.Sprintf(`version = 1

[[accounts]]
alias = "smoke"
host = %q
priority = 1

[accounts.auth]
kind = "bearer"
token = "$JM_SMOKE_TOKEN"
`, host)

	return os.WriteFile(filepath.Join(configDir, "accounts.toml"), []byte(accounts), 0o644)
}
