package preflight

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/disk"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/seed"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/supervisor"
)

// ErrDependencyMissing indicates a required external tool is absent
var ErrDependencyMissing = errors.New("required external tool missing")

// Checker verifies external tool availability before provisioning touches
// anything. Running it first means a missing tool aborts the run before any
// destructive step (overlay deletion, seed overwrite) has happened.
type Checker struct {
	// Required tools, all of which must be on PATH
	Required []string

	// OneOf groups, each satisfied by any single member
	OneOf [][]string
}

// NewChecker creates a checker covering the provisioner's tool set:
// the virtualization engine, the disk image tool, and one seed authoring tool
func NewChecker() *Checker {
	return &Checker{
		Required: []string{supervisor.DefaultBinary, disk.QemuImgBinary},
		OneOf:    [][]string{seed.AuthoringTools()},
	}
}

// Check verifies every dependency and reports all missing tools at once
func (c *Checker) Check() error {
	var missing []string

	for _, tool := range c.Required {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}

	for _, group := range c.OneOf {
		found := false
		for _, tool := range group {
			if _, err := exec.LookPath(tool); err == nil {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, "one of "+strings.Join(group, "|"))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrDependencyMissing, strings.Join(missing, ", "))
	}
	return nil
}
