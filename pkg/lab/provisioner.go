package lab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/cloudinit"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/config"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/disk"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/image"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/network"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/preflight"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/seed"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/state"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/supervisor"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

// Provisioner runs the full provisioning pipeline for one lab definition:
// preflight, base image barrier, then per-instance pipelines (document render,
// seed media, overlay disk, network device assembly, process launch) running
// concurrently.
type Provisioner struct {
	cfg   *config.Config
	def   *Definition
	runID string

	cache     *image.Cache
	builder   *seed.Builder
	disks     *disk.Manager
	allocator *network.Allocator
	sup       *supervisor.Supervisor

	logger zerolog.Logger
}

// NewProvisioner creates a provisioner for a validated lab definition
func NewProvisioner(cfg *config.Config, def *Definition) (*Provisioner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()[:8]
	imagePath := filepath.Join(cfg.Workspace, "images", cfg.ImageFileName())

	return &Provisioner{
		cfg:       cfg,
		def:       def,
		runID:     runID,
		cache:     image.NewCache(cfg.Image.URL, imagePath, cfg.Image.SHA256),
		builder:   seed.NewBuilder(),
		disks:     disk.NewManager(),
		allocator: network.NewAllocator(),
		sup:       supervisor.NewSupervisor(),
		logger:    log.WithRunID(runID),
	}, nil
}

// Up provisions and launches every instance in the lab. Completed artifacts
// are never rolled back on failure, and a sibling instance that already
// launched when another pipeline fails is left running; re-running Up resets
// each instance by recreating its overlay and seed media.
func (p *Provisioner) Up(ctx context.Context) ([]*types.VMProcessHandle, error) {
	key, err := p.cfg.PublicKey()
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("no SSH public key configured; set ssh.public_key or ssh.public_key_path")
	}

	// All required tools are verified before any destructive step runs
	if err := preflight.NewChecker().Check(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.cfg.Workspace, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	store, err := state.NewBoltStore(p.cfg.Workspace)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := p.checkClaims(store); err != nil {
		return nil, err
	}

	// Barrier: every instance pipeline waits for the shared base image
	if err := p.cache.Ensure(ctx); err != nil {
		return nil, err
	}

	instances, err := p.assign()
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("lab", p.def.Name).
		Int("instances", len(instances)).
		Msg("Provisioning lab")

	var wg sync.WaitGroup
	errCh := make(chan error, len(instances))
	handleCh := make(chan *types.VMProcessHandle, len(instances))

	for _, inst := range instances {
		wg.Add(1)
		go func(inst types.LabInstance) {
			defer wg.Done()

			handle, err := p.provision(inst, key)
			if err != nil {
				errCh <- fmt.Errorf("instance %s: %w", inst.Name, err)
				return
			}
			if err := store.SaveHandle(handle); err != nil {
				errCh <- fmt.Errorf("instance %s: failed to record handle: %w", inst.Name, err)
				return
			}
			handleCh <- handle
		}(inst)
	}

	wg.Wait()
	close(errCh)
	close(handleCh)

	var handles []*types.VMProcessHandle
	for handle := range handleCh {
		handles = append(handles, handle)
	}

	if err := <-errCh; err != nil {
		return handles, err
	}

	p.logger.Info().Int("launched", len(handles)).Msg("Lab is up")
	return handles, nil
}

// assign copies the definition's instances and stamps the isolated segment
// identity onto each one. The assigned endpoint is the single source of truth:
// the same value flows into the first-boot document and the device arguments.
func (p *Provisioner) assign() ([]types.LabInstance, error) {
	instances := make([]types.LabInstance, len(p.def.Instances))
	copy(instances, p.def.Instances)

	for i := range instances {
		if instances[i].MemoryMB == 0 {
			instances[i].MemoryMB = p.cfg.Defaults.MemoryMB
		}
		if !p.def.Multi() {
			continue
		}

		ep, err := p.allocator.Next()
		if err != nil {
			return nil, fmt.Errorf("segment allocation for %s: %w", instances[i].Name, err)
		}
		instances[i].LanIP = ep.IP
		instances[i].MAC = ep.MAC
		instances[i].ExtraNet = p.allocator.SegmentDeviceArgs(instances[i].Name, ep)
	}
	return instances, nil
}

// provision runs one instance's pipeline in strict sequence
func (p *Provisioner) provision(inst types.LabInstance, key string) (*types.VMProcessHandle, error) {
	ilog := log.WithInstance(inst.Name)

	values := map[string]string{
		cloudinit.TokenHostname:     inst.Name,
		cloudinit.TokenInstanceName: inst.Name,
		cloudinit.TokenSSHPublicKey: key,
	}
	if inst.LanIP != "" {
		values[cloudinit.TokenLanIP] = inst.LanIP
		values[cloudinit.TokenLanMAC] = inst.MAC
	}

	doc, err := cloudinit.Render(inst.Role, values)
	if err != nil {
		return nil, err
	}
	ilog.Debug().Str("role", string(inst.Role)).Msg("First-boot document rendered")

	seedPath := p.seedPath(inst.Name)
	if err := p.builder.Build(doc, seedPath); err != nil {
		return nil, err
	}

	overlayPath := p.overlayPath(inst.Name)
	if err := p.disks.CreateOverlay(p.cache.Path, overlayPath, p.cfg.Defaults.DiskSize); err != nil {
		return nil, err
	}

	netArgs := network.NATDeviceArgs(inst.Name, inst.SSHPort)
	netArgs = append(netArgs, inst.ExtraNet...)

	handle, err := p.sup.Launch(supervisor.LaunchSpec{
		Name:        inst.Name,
		OverlayPath: overlayPath,
		SeedPath:    seedPath,
		MemoryMB:    inst.MemoryMB,
		SSHPort:     inst.SSHPort,
		RunID:       p.runID,
		NetArgs:     netArgs,
		LogDir:      filepath.Join(p.cfg.Workspace, "logs"),
	})
	if err != nil {
		return nil, err
	}

	ilog.Info().
		Int("pid", handle.PID).
		Int("ssh_port", handle.SSHPort).
		Msgf("Instance up; try: ssh -p %d labuser@localhost (allow ~%s for first boot)",
			handle.SSHPort, supervisor.ApproxBootWait)
	return handle, nil
}

// checkClaims refuses to provision over a live instance: a running process
// holds the exclusive claim on its overlay disk and host port, and must be
// stopped externally before being superseded.
func (p *Provisioner) checkClaims(store state.Store) error {
	handles, err := store.ListHandles()
	if err != nil {
		return err
	}

	ports := map[int]string{}
	for _, inst := range p.def.Instances {
		ports[inst.SSHPort] = inst.Name
	}

	for _, h := range handles {
		if !supervisor.Alive(h.PID) {
			continue
		}
		for _, inst := range p.def.Instances {
			if h.Instance == inst.Name {
				return fmt.Errorf("instance %s is already running (pid %d); stop it before re-provisioning", h.Instance, h.PID)
			}
		}
		if name, ok := ports[h.SSHPort]; ok {
			return fmt.Errorf("host port %d wanted by %s is held by running instance %s (pid %d)",
				h.SSHPort, name, h.Instance, h.PID)
		}
	}
	return nil
}

// Status reports every recorded instance, refreshing its state from the
// process table. A dead process reads as stopped; without exit codes a crash
// is only distinguishable through the instance log.
func Status(cfg *config.Config) ([]*types.VMProcessHandle, error) {
	store, err := state.NewBoltStore(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	handles, err := store.ListHandles()
	if err != nil {
		return nil, err
	}

	for _, h := range handles {
		if supervisor.Alive(h.PID) {
			h.State = types.ProcessStateRunning
		} else {
			h.State = types.ProcessStateStopped
		}
	}
	return handles, nil
}

func (p *Provisioner) overlayPath(name string) string {
	return filepath.Join(p.cfg.Workspace, "disks", name+".qcow2")
}

func (p *Provisioner) seedPath(name string) string {
	return filepath.Join(p.cfg.Workspace, "seeds", name+"-cidata.iso")
}
