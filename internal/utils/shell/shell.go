package shell

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
)

var commandMap = map[string]string{
	"apt-get":             "/usr/bin/apt-get",
	"bash":                "/usr/bin/bash",
	"cat":                 "/usr/bin/cat",
	"dpkg-query":          "/usr/bin/dpkg-query",
	"echo":                "/usr/bin/echo",
	"flatpak":             "/usr/bin/flatpak",
	"id":                  "/usr/bin/id",
	"lspci":               "/usr/bin/lspci",
	"pacman":              "/usr/bin/pacman",
	"paru":                "/usr/bin/paru",
	"sudo":                "/usr/bin/sudo",
	"systemctl":           "/usr/bin/systemctl",
	"systemd-detect-virt": "/usr/bin/systemd-detect-virt",
	"usermod":             "/usr/sbin/usermod",
	"yay":                 "/usr/bin/yay",
}

// Executor runs shell command strings. Default is swapped for a
// MockExecutor in tests.
type Executor interface {
	ExecCmd(cmdStr string, sudo bool, envVal []string) (string, error)
	ExecCmdWithStream(cmdStr string, sudo bool, envVal []string) (string, error)
}

var Default Executor = &DefaultExecutor{}

// ExecCmd executes a command through Default and returns its combined output.
func ExecCmd(cmdStr string, sudo bool, envVal []string) (string, error) {
	return Default.ExecCmd(cmdStr, sudo, envVal)
}

// ExecCmdWithStream executes a command through Default, logging output lines
// as they arrive.
func ExecCmdWithStream(cmdStr string, sudo bool, envVal []string) (string, error) {
	return Default.ExecCmdWithStream(cmdStr, sudo, envVal)
}

// IsCommandExist reports whether bin resolves on PATH.
func IsCommandExist(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

// GetOSProxyEnvirons returns the http(s)_proxy variables of this process so
// they survive sudo.
func GetOSProxyEnvirons() map[string]string {
	proxyEnv := make(map[string]string)
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		if strings.Contains(lower, "http_proxy") || strings.Contains(lower, "https_proxy") {
			proxyEnv[key] = value
		}
	}
	return proxyEnv
}

func verifyCmdWithFullPath(cmd string) (string, error) {
	separators := []string{"&&", "||", ";"}

	sepIdx, sep := -1, ""
	for _, s := range separators {
		if idx := strings.Index(cmd, s); idx != -1 && (sepIdx == -1 || idx < sepIdx) {
			sepIdx, sep = idx, s
		}
	}
	if sepIdx != -1 {
		left, err := verifyCmdWithFullPath(strings.TrimSpace(cmd[:sepIdx]))
		if err != nil {
			return "", fmt.Errorf("failed to verify command: %w", err)
		}
		right, err := verifyCmdWithFullPath(strings.TrimSpace(cmd[sepIdx+len(sep):]))
		if err != nil {
			return "", fmt.Errorf("failed to verify command: %w", err)
		}
		return left + " " + sep + " " + right, nil
	}

	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return cmd, nil
	}
	fullPath, ok := commandMap[fields[0]]
	if !ok {
		return "", fmt.Errorf("command %s not found in commandMap", fields[0])
	}
	fields[0] = fullPath
	return strings.Join(fields, " "), nil
}

// GetFullCmdStr resolves the binary to its absolute path and prepends sudo
// and environment assignments.
func GetFullCmdStr(cmdStr string, sudo bool, envVal []string) (string, error) {
	log := logger.Logger()

	fullPathCmdStr, err := verifyCmdWithFullPath(cmdStr)
	if err != nil {
		return fullPathCmdStr, fmt.Errorf("failed to verify command with full path: %w", err)
	}

	envValStr := ""
	for _, env := range envVal {
		envValStr += env + " "
	}

	if !sudo {
		log.Debugf("Exec: [%s]", fullPathCmdStr)
		return envValStr + fullPathCmdStr, nil
	}

	for key, value := range GetOSProxyEnvirons() {
		envValStr += key + "=" + value + " "
	}
	log.Debugf("Exec: [sudo %s]", fullPathCmdStr)
	return commandMap["sudo"] + " " + envValStr + fullPathCmdStr, nil
}

// DefaultExecutor runs commands through bash on the host.
type DefaultExecutor struct{}

func (DefaultExecutor) ExecCmd(cmdStr string, sudo bool, envVal []string) (string, error) {
	log := logger.Logger()
	fullCmdStr, err := GetFullCmdStr(cmdStr, sudo, envVal)
	if err != nil {
		return "", fmt.Errorf("failed to get full command string: %w", err)
	}

	output, err := exec.Command(commandMap["bash"], "-c", fullCmdStr).CombinedOutput()
	outputStr := string(output)
	if err != nil {
		if outputStr != "" {
			log.Infof("%s", outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	if outputStr != "" {
		log.Debugf("%s", outputStr)
	}
	return outputStr, nil
}

func (DefaultExecutor) ExecCmdWithStream(cmdStr string, sudo bool, envVal []string) (string, error) {
	log := logger.Logger()
	fullCmdStr, err := GetFullCmdStr(cmdStr, sudo, envVal)
	if err != nil {
		return "", fmt.Errorf("failed to get full command string: %w", err)
	}

	cmd := exec.Command(commandMap["bash"], "-c", fullCmdStr)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", fullCmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", fullCmdStr, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", fullCmdStr, err)
	}

	var (
		wg  sync.WaitGroup
		out strings.Builder
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				out.WriteString(line + "\n")
				log.Infof("%s", line)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				log.Infof("%s", line)
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return out.String(), fmt.Errorf("failed to wait for command %s: %w", fullCmdStr, err)
	}
	return out.String(), nil
}

// MockCommand maps a regular expression over the unexpanded command string to
// a canned result.
type MockCommand struct {
	Pattern string
	Output  string
	Error   error
}

// MockExecutor answers commands from a fixed table and records every call.
// Commands that match no pattern fail.
type MockExecutor struct {
	mu       sync.Mutex
	commands []MockCommand
	Calls    []string
}

func NewMockExecutor(commands []MockCommand) *MockExecutor {
	return &MockExecutor{commands: commands}
}

func (m *MockExecutor) ExecCmd(cmdStr string, sudo bool, envVal []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := cmdStr
	if sudo {
		recorded = "sudo " + cmdStr
	}
	m.Calls = append(m.Calls, recorded)

	for _, c := range m.commands {
		if matched, _ := regexp.MatchString(c.Pattern, cmdStr); matched {
			return c.Output, c.Error
		}
	}
	return "", fmt.Errorf("no mock output for command: %s", cmdStr)
}

func (m *MockExecutor) ExecCmdWithStream(cmdStr string, sudo bool, envVal []string) (string, error) {
	return m.ExecCmd(cmdStr, sudo, envVal)
}

// Recorded returns a copy of the commands seen so far.
func (m *MockExecutor) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}
