package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"
)

// checkShellAvailable checks if a shell is available for testing
func checkShellAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("No shell available in test environment")
	}
}

var ExpectedOutput = map[string][]interface{}{
	"echo test-exec-cmd-override": {"override-test\n", nil},
	"false":                       {"", fmt.Errorf("exit status 1")},
}

func ExecCmdOverride(_ context.Context, c Command) (string, error) {
	if output, exists := ExpectedOutput[c.String()]; exists {
		if output[1] != nil {
			return output[0].(string), output[1].(error)
		}
		return output[0].(string), nil
	}
	return "", fmt.Errorf("Unexpected command for override: %s", c)
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Path: "python3", Args: []string{"-m", "venv", "/tmp/x"}}, "python3 -m venv /tmp/x"},
		{Command{Path: "echo", Args: []string{"two words"}}, "echo 'two words'"},
		{Command{Path: "echo", Args: []string{"it's"}}, `echo 'it'"'"'s'`},
		{Command{Path: "echo", Args: []string{""}}, "echo ''"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestExecCmd(t *testing.T) {
	checkShellAvailable(t)

	out, err := ExecCmd(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo test-exec-cmd"}})
	if err != nil {
		t.Fatalf("ExecCmd failed: %v", err)
	}
	if !strings.Contains(out, "test-exec-cmd") {
		t.Errorf("Expected output to contain 'test-exec-cmd', got: %s", out)
	}
}

func TestExecCmdEnv(t *testing.T) {
	checkShellAvailable(t)

	out, err := ExecCmd(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo $WSI_TEST_VALUE"},
		Env:  []string{"WSI_TEST_VALUE=from-env"},
	})
	if err != nil {
		t.Fatalf("ExecCmd failed: %v", err)
	}
	if !strings.Contains(out, "from-env") {
		t.Errorf("Expected env value in output, got: %s", out)
	}
}

func TestExecCmdFailure(t *testing.T) {
	checkShellAvailable(t)

	out, err := ExecCmd(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo boom; exit 3"}})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("expected output to be returned on failure, got: %s", out)
	}
}

func TestExecCmdWithStream(t *testing.T) {
	checkShellAvailable(t)

	out, err := ExecCmdWithStream(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo test-exec-stream; echo on-stderr 1>&2"},
	})
	if err != nil {
		t.Fatalf("ExecCmdWithStream failed: %v", err)
	}
	if !strings.Contains(out, "test-exec-stream") || !strings.Contains(out, "on-stderr") {
		t.Errorf("Expected both streams in output, got: %s", out)
	}
}

func TestExecCmdOverride(t *testing.T) {
	originalExecCmd := ExecCmd
	defer func() { ExecCmd = originalExecCmd }()
	ExecCmd = ExecCmdOverride

	out, err := ExecCmd(context.Background(), Command{Path: "echo", Args: []string{"test-exec-cmd-override"}})
	if err != nil {
		t.Fatalf("ExecCmd with override failed: %v", err)
	}
	if !strings.Contains(out, "override-test") {
		t.Errorf("Expected output to contain 'override-test', got: %s", out)
	}

	if _, err := ExecCmd(context.Background(), Command{Path: "false"}); err == nil {
		t.Error("expected override error to be returned")
	}
}

func TestIsCommandExist(t *testing.T) {
	checkShellAvailable(t)
	if !IsCommandExist("sh") {
		t.Error("expected sh to exist")
	}
	if IsCommandExist("definitely-not-a-real-command-wsi") {
		t.Error("expected bogus command to be missing")
	}
}

func TestGetOSProxyEnvirons(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://proxy.example:3128")
	t.Setenv("no_proxy", "localhost")
	t.Setenv("WSI_UNRELATED", "1")

	env := GetOSProxyEnvirons()
	if env["HTTPS_PROXY"] != "http://proxy.example:3128" {
		t.Errorf("expected HTTPS_PROXY, got %v", env)
	}
	if env["no_proxy"] != "localhost" {
		t.Errorf("expected no_proxy, got %v", env)
	}
	if _, ok := env["WSI_UNRELATED"]; ok {
		t.Error("unrelated variable reported as proxy setting")
	}
}
