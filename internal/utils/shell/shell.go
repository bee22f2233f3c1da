package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"golang.org/x/sync/errgroup"
)

// Command is a single process invocation. Path is looked up on PATH when it
// has no slash.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // KEY=VALUE pairs added on top of the host environment
}

// String renders the command the way a user would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, Quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}

// Quote single-quotes s when it contains shell metacharacters.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("@%+=:,./_-", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// GetOSEnvirons returns the system environment variables
func GetOSEnvirons() map[string]string {
	environ := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			environ[parts[0]] = parts[1]
		}
	}
	return environ
}

// GetOSProxyEnvirons retrieves HTTP, HTTPS and no-proxy environment variables
func GetOSProxyEnvirons() map[string]string {
	proxyEnv := make(map[string]string)
	for key, value := range GetOSEnvirons() {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "http_proxy") ||
			strings.Contains(lower, "https_proxy") ||
			lower == "no_proxy" {
			proxyEnv[key] = value
		}
	}
	return proxyEnv
}

// IsCommandExist checks if a command can be found on PATH
func IsCommandExist(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

func buildCmd(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

// ExecCmd executes a command and returns its combined output
var ExecCmd = func(ctx context.Context, c Command) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s]", c)

	output, err := buildCmd(ctx, c).CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Info(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", c, err)
	}
	if outputStr != "" {
		log.Debug(outputStr)
	}
	return outputStr, nil
}

// ExecCmdSilent executes a command without logging its output
var ExecCmdSilent = func(ctx context.Context, c Command) (string, error) {
	output, err := buildCmd(ctx, c).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("failed to exec %s: %w", c, err)
	}
	return string(output), nil
}

// ExecCmdWithStream executes a command, logging each output line as it
// arrives. The returned string holds stdout and stderr lines in arrival order.
var ExecCmdWithStream = func(ctx context.Context, c Command) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s]", c)

	cmd := buildCmd(ctx, c)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", c, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", c, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", c, err)
	}

	var (
		mu  sync.Mutex
		out strings.Builder
	)
	scan := func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			mu.Lock()
			out.WriteString(line)
			out.WriteByte('\n')
			mu.Unlock()
			log.Info(line)
		}
		return scanner.Err()
	}

	var g errgroup.Group
	g.Go(func() error { return scan(stdout) })
	g.Go(func() error { return scan(stderr) })
	scanErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		return out.String(), fmt.Errorf("failed to wait for command %s: %w", c, err)
	}
	if scanErr != nil {
		return out.String(), fmt.Errorf("failed to read output of %s: %w", c, scanErr)
	}
	return out.String(), nil
}
