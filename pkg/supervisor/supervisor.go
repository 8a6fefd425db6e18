package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

// ErrLaunch indicates the VM process failed to start
var ErrLaunch = errors.New("vm process launch failed")

// DefaultBinary is the virtualization engine
const DefaultBinary = "qemu-system-x86_64"

// ApproxBootWait is the documented approximate time from launch to a usable
// SSH login on first boot. There is no readiness probe; callers who need the
// guest up wait about this long and then try the forwarded port.
const ApproxBootWait = 90 * time.Second

// LaunchSpec carries everything needed to start one VM process
type LaunchSpec struct {
	Name        string
	OverlayPath string
	SeedPath    string
	MemoryMB    int
	SSHPort     int
	RunID       string
	NetArgs     []string // Assembled network device arguments
	LogDir      string
}

// Supervisor launches VM processes detached from the provisioner. Launched
// processes run until externally stopped; there is no automatic restart, and
// a crash is observable only through the instance log or the absence of the
// forwarded port.
type Supervisor struct {
	Binary string

	logger zerolog.Logger
}

// NewSupervisor creates a supervisor using the default virtualization engine
func NewSupervisor() *Supervisor {
	return &Supervisor{
		Binary: DefaultBinary,
		logger: log.WithComponent("supervisor"),
	}
}

// Launch starts the VM as a detached process with console output redirected
// to a per-instance log file, and returns immediately without awaiting boot.
// The returned handle holds the exclusive claim on the overlay disk and host
// SSH port for as long as the process is alive.
func (s *Supervisor) Launch(spec LaunchSpec) (*types.VMProcessHandle, error) {
	if err := os.MkdirAll(spec.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create log directory: %v", ErrLaunch, err)
	}

	logPath := filepath.Join(spec.LogDir, spec.Name+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create log file: %v", ErrLaunch, err)
	}
	defer logFile.Close()

	args := BuildArgs(spec)
	s.logger.Debug().Str("binary", s.Binary).Strs("args", args).Msg("Launching VM process")

	cmd := exec.Command(s.Binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// Own session: the VM must outlive the provisioner process
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, s.Binary, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		s.logger.Warn().Err(err).Int("pid", pid).Msg("Failed to release process handle")
	}

	s.logger.Info().
		Str("instance", spec.Name).
		Int("pid", pid).
		Int("ssh_port", spec.SSHPort).
		Str("log", logPath).
		Msg("VM process launched")

	return &types.VMProcessHandle{
		Instance:    spec.Name,
		RunID:       spec.RunID,
		PID:         pid,
		SSHPort:     spec.SSHPort,
		OverlayPath: spec.OverlayPath,
		SeedPath:    spec.SeedPath,
		LogPath:     logPath,
		State:       types.ProcessStateRunning,
		StartedAt:   time.Now().UTC(),
	}, nil
}

// Alive reports whether a launched process still exists, by signal 0
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// BuildArgs assembles the virtualization engine command line for a spec
func BuildArgs(spec LaunchSpec) []string {
	args := []string{
		"-name", spec.Name,
		"-m", strconv.Itoa(spec.MemoryMB),
		"-smp", "2",
		"-accel", "kvm:tcg",
		"-drive", fmt.Sprintf("file=%s,format=qcow2,if=virtio", spec.OverlayPath),
		"-cdrom", spec.SeedPath,
		"-display", "none",
		"-serial", "stdio",
	}
	return append(args, spec.NetArgs...)
}
