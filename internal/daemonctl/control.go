// Package daemonctl lets the CLI launch, query and stop meshportd over its
// HTTP API and pid file.
package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"meshport/internal/api"
	"meshport/internal/config"
)

// DaemonBinary is the daemon executable looked up next to the CLI or on PATH.
const DaemonBinary = "meshportd"

// ErrNotRunning reports that no daemon answered.
var ErrNotRunning = errors.New("meshport daemon is not running")

// Client queries a running daemon.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient targets the daemon bound at cfg.Paths.APIBind.
func NewClient(cfg *config.Config) *Client {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	base := bind
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      cfg.Paths.APIToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Status fetches /api/status. Connection failures are reported as ErrNotRunning.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status: %s", resp.Status)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

// WaitForReady polls Status until the daemon answers or timeout elapses.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := c.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// ResolveBinary finds meshportd next to executable, falling back to PATH.
func ResolveBinary(executable string) (string, error) {
	if executable != "" {
		candidate := filepath.Join(filepath.Dir(executable), DaemonBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(DaemonBinary)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", DaemonBinary, err)
	}
	return path, nil
}

// Launch starts a detached daemon process.
func Launch(binary, configPath string) error {
	if strings.TrimSpace(binary) == "" {
		return errors.New("launch daemon: binary path is empty")
	}
	var args []string
	if configPath = strings.TrimSpace(configPath); configPath != "" {
		args = append(args, "-config", configPath)
	}
	proc := exec.Command(binary, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// ReadPID returns the pid recorded by a running daemon, or ErrNotRunning.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotRunning
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", cfg.PIDPath())
	}
	return pid, nil
}

// Stop sends SIGTERM to the daemon and waits for its pid file to disappear.
func Stop(cfg *config.Config, timeout time.Duration) error {
	pid, err := ReadPID(cfg)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = os.Remove(cfg.PIDPath())
			return ErrNotRunning
		}
		return fmt.Errorf("signal daemon: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(cfg.PIDPath()); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}
