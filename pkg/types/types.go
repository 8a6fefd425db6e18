package types

import (
	"time"
)

// Role defines the part an instance plays in the lab
type Role string

const (
	// RoleStandalone is a single hardened VM with no inter-VM segment
	RoleStandalone Role = "standalone"

	// RoleServer is the hardened target VM on the isolated segment
	RoleServer Role = "server"

	// RoleClient is the attacker VM on the isolated segment
	RoleClient Role = "client"
)

// ImageState represents the state of the shared base image
type ImageState string

const (
	ImageStateMissing     ImageState = "missing"
	ImageStateDownloading ImageState = "downloading"
	ImageStatePresent     ImageState = "present"
)

// LabInstance describes one VM to provision. Instances are created once per
// run from the lab definition and are immutable afterwards.
type LabInstance struct {
	Name     string   `yaml:"name"`
	Role     Role     `yaml:"role"`
	SSHPort  int      `yaml:"ssh_port"`  // Host port forwarded to guest port 22
	LanIP    string   `yaml:"lan_ip"`    // Static IP on the isolated segment (empty for standalone)
	MAC      string   `yaml:"mac"`       // Assigned MAC on the isolated segment (empty for standalone)
	MemoryMB int      `yaml:"memory_mb"` // Guest memory size
	ExtraNet []string `yaml:"-"`         // Additional QEMU network device arguments
}

// ProcessState represents the state of a launched VM process
type ProcessState string

const (
	ProcessStateStarting ProcessState = "starting"
	ProcessStateRunning  ProcessState = "running"
	ProcessStateStopped  ProcessState = "stopped"
	ProcessStateCrashed  ProcessState = "crashed"
)

// VMProcessHandle identifies a launched VM process. The handle holds the
// exclusive claim on its overlay disk and host SSH port while the process
// is alive; superseding an instance requires terminating the prior process.
type VMProcessHandle struct {
	Instance    string       `json:"instance"`
	RunID       string       `json:"run_id"`
	PID         int          `json:"pid"`
	SSHPort     int          `json:"ssh_port"`
	OverlayPath string       `json:"overlay_path"`
	SeedPath    string       `json:"seed_path"`
	LogPath     string       `json:"log_path"`
	State       ProcessState `json:"state"`
	StartedAt   time.Time    `json:"started_at"`
}
