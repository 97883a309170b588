//go:build linux

package bluetooth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// rfcommBinding is a running `rfcomm connect` process bound to /dev/rfcommN.
type rfcommBinding struct {
	DevicePath string
	MAC        string
	helper     string
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	mu         sync.Mutex
}

// checkRFCOMMInstalled verifies the rfcomm binary is available.
func checkRFCOMMInstalled() error {
	if _, err := exec.LookPath("rfcomm"); err != nil {
		return ErrRFCOMMMissing
	}
	return nil
}

// privilegeHelper returns the available privilege escalation method.
func privilegeHelper() string {
	// pkexec works with a GUI session
	if _, err := exec.LookPath("pkexec"); err == nil {
		return "pkexec"
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return "sudo"
	}
	return ""
}

// findAvailableRFCOMMDevice finds an unused /dev/rfcommN device number.
func findAvailableRFCOMMDevice() (string, int, error) {
	for i := 0; i < 10; i++ {
		devPath := fmt.Sprintf("/dev/rfcomm%d", i)
		out, _ := exec.Command("rfcomm", "show", devPath).Output()
		if len(out) == 0 || strings.Contains(string(out), "No such device") {
			return devPath, i, nil
		}
	}
	return "", -1, fmt.Errorf("no available RFCOMM device slots")
}

func privileged(ctx context.Context, helper string, args ...string) *exec.Cmd {
	if helper == "pkexec" {
		return exec.CommandContext(ctx, "pkexec", append([]string{"rfcomm"}, args...)...)
	}
	return exec.CommandContext(ctx, "sudo", append([]string{"-n", "rfcomm"}, args...)...)
}

// establishRFCOMM runs rfcomm connect in the background and returns once
// the device node appears, ctx is done, or 15s pass.
func establishRFCOMM(ctx context.Context, mac string, channel int, status func(string)) (*rfcommBinding, error) {
	if err := checkRFCOMMInstalled(); err != nil {
		return nil, err
	}

	devPath, devNum, err := findAvailableRFCOMMDevice()
	if err != nil {
		return nil, err
	}

	helper := privilegeHelper()
	if helper == "" {
		return nil, ErrPrivilegeRequired
	}

	// The process must outlive ctx: it holds the channel open until Close.
	procCtx, cancel := context.WithCancel(context.Background())
	b := &rfcommBinding{
		DevicePath: devPath,
		MAC:        mac,
		helper:     helper,
		cancel:     cancel,
	}

	cmd := privileged(procCtx, helper, "connect", fmt.Sprintf("/dev/rfcomm%d", devNum), mac, fmt.Sprintf("%d", channel))
	b.cmd = cmd

	stderr, _ := cmd.StderrPipe()
	stdout, _ := cmd.StdoutPipe()

	status(fmt.Sprintf("Connecting to %s...", mac))

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start rfcomm: %w", err)
	}

	go forwardLines(stdout, status)
	go forwardLines(stderr, status)

	deadline := time.NewTimer(15 * time.Second)
	defer deadline.Stop()
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Close()
			return nil, ctx.Err()
		case <-deadline.C:
			b.Close()
			return nil, fmt.Errorf("timeout waiting for %s to appear", devPath)
		case <-tick.C:
			if _, err := os.Stat(devPath); err == nil {
				// node exists, give it a moment to be ready
				time.Sleep(500 * time.Millisecond)
				return b, nil
			}
		}
	}
}

func forwardLines(r io.Reader, status func(string)) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		status(scanner.Text())
	}
}

// Close terminates the RFCOMM binding.
func (b *rfcommBinding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	var err error
	if b.DevicePath != "" {
		// may need privileges
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = privileged(releaseCtx, b.helper, "release", b.DevicePath).Run()
		cancel()
		if err != nil {
			err = fmt.Errorf("rfcomm release %s: %w", b.DevicePath, err)
		}
	}

	if b.cmd != nil && b.cmd.Process != nil {
		b.cmd.Process.Kill()
		b.cmd.Wait()
		b.cmd = nil
	}
	return err
}
