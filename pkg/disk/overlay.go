package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"
)

// ErrDiskCreation indicates the copy-on-write overlay could not be created
var ErrDiskCreation = errors.New("overlay disk creation failed")

// QemuImgBinary is the disk image tool
const QemuImgBinary = "qemu-img"

// Manager creates copy-on-write overlay disks layered on a shared base image.
// The base image is only ever opened read-only; all guest writes land in the
// overlay.
type Manager struct {
	logger zerolog.Logger
}

// NewManager creates an overlay disk manager
func NewManager() *Manager {
	return &Manager{
		logger: log.WithComponent("overlay-disk"),
	}
}

// CreateOverlay deletes any pre-existing file at target and creates a fresh
// qcow2 overlay backed by base. Deleting the prior overlay is the reset
// mechanism: all guest-side state for the instance is discarded while the
// base image stays untouched. size is an optional capacity override such as
// "10G"; empty inherits the backing image's virtual size.
func (m *Manager) CreateOverlay(base, target, size string) error {
	if _, err := os.Stat(base); err != nil {
		return fmt.Errorf("%w: base image not present at %s: %v", ErrDiskCreation, base, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("%w: failed to create disk directory: %v", ErrDiskCreation, err)
	}

	// Reset: discard the prior overlay before creating the replacement
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to remove prior overlay %s: %v", ErrDiskCreation, target, err)
	}

	args := overlayArgs(base, target, size)
	m.logger.Debug().Strs("args", args).Msg("Creating overlay disk")

	cmd := exec.Command(QemuImgBinary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: qemu-img failed: %v (output: %s)", ErrDiskCreation, err, output)
	}

	m.logger.Info().Str("overlay", target).Str("base", base).Msg("Overlay disk created")
	return nil
}

// Info describes a disk image as reported by qemu-img
type Info struct {
	Format          string `json:"format"`
	VirtualSize     int64  `json:"virtual-size"`
	BackingFilename string `json:"backing-filename"`
}

// ImageInfo queries qemu-img for a disk image's format, virtual size, and
// backing file reference
func (m *Manager) ImageInfo(path string) (*Info, error) {
	cmd := exec.Command(QemuImgBinary, "info", "--output=json", path)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", path, err)
	}

	var info Info
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse qemu-img info for %s: %w", path, err)
	}
	return &info, nil
}

// overlayArgs assembles the qemu-img create command line. The backing format
// is pinned so qemu-img never probes the base image.
func overlayArgs(base, target, size string) []string {
	args := []string{
		"create",
		"-f", "qcow2",
		"-b", base,
		"-F", "qcow2",
		target,
	}
	if size != "" {
		args = append(args, size)
	}
	return args
}
