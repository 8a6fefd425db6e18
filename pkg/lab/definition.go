package lab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

// Definition describes the set of instances making up one lab. Instances are
// static: the definition is fixed before provisioning starts and never
// renegotiated at runtime.
type Definition struct {
	Name      string              `yaml:"name"`
	Instances []types.LabInstance `yaml:"instances"`
}

// SingleDefinition is the built-in one-VM lab: a standalone hardened SSH
// server reachable through a forwarded host port
func SingleDefinition() *Definition {
	return &Definition{
		Name: "ssh-lab",
		Instances: []types.LabInstance{
			{Name: "sshserver", Role: types.RoleStandalone, SSHPort: 2222},
		},
	}
}

// DualDefinition is the built-in two-VM lab: a hardened target and an
// attacker box sharing the isolated segment
func DualDefinition() *Definition {
	return &Definition{
		Name: "ssh-lab-dual",
		Instances: []types.LabInstance{
			{Name: "target", Role: types.RoleServer, SSHPort: 2222},
			{Name: "attacker", Role: types.RoleClient, SSHPort: 2223},
		},
	}
}

// LoadDefinition reads a lab definition from a YAML file, so labs can scale
// past the built-in topologies without code changes
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lab definition %s: %w", path, err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse lab definition %s: %w", path, err)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lab definition %s: %w", path, err)
	}
	return &def, nil
}

// Validate checks that the definition is internally consistent: known roles,
// unique instance names, and unique host SSH ports
func (d *Definition) Validate() error {
	if len(d.Instances) == 0 {
		return fmt.Errorf("definition has no instances")
	}

	names := map[string]bool{}
	ports := map[int]bool{}
	for _, inst := range d.Instances {
		if inst.Name == "" {
			return fmt.Errorf("instance with empty name")
		}
		if names[inst.Name] {
			return fmt.Errorf("duplicate instance name: %s", inst.Name)
		}
		names[inst.Name] = true

		switch inst.Role {
		case types.RoleStandalone, types.RoleServer, types.RoleClient:
		default:
			return fmt.Errorf("instance %s has unknown role %q", inst.Name, inst.Role)
		}

		if inst.SSHPort <= 0 || inst.SSHPort > 65535 {
			return fmt.Errorf("instance %s has invalid ssh port %d", inst.Name, inst.SSHPort)
		}
		if ports[inst.SSHPort] {
			return fmt.Errorf("instance %s reuses ssh port %d", inst.Name, inst.SSHPort)
		}
		ports[inst.SSHPort] = true

		if len(d.Instances) > 1 && inst.Role == types.RoleStandalone {
			return fmt.Errorf("instance %s: standalone role is only valid in a single-instance lab", inst.Name)
		}
	}

	return nil
}

// Multi reports whether the lab has an isolated inter-VM segment
func (d *Definition) Multi() bool {
	return len(d.Instances) > 1
}
