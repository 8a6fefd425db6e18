package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/config"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/lab"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/supervisor"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ssh-lab",
	Short: "ssh-lab - Disposable SSH hardening lab on QEMU",
	Long: `ssh-lab provisions short-lived QEMU virtual machines for hands-on
SSH security training: a hardened target running fail2ban and a port-knocking
daemon, optionally paired with an attacker VM on an isolated lab segment.

Every run rebuilds the lab from a shared read-only base image, so resetting
an exercise is just running it again.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ssh-lab version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(statusCmd)
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision and launch the lab VMs",
	Long: `Provision and launch the lab VMs.

By default a single hardened SSH server is launched, reachable on a forwarded
host port. With --dual, a second attacker VM joins the target on an isolated
inter-VM segment. Re-running recreates each instance's overlay disk and seed
media, discarding all guest-side state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")

		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}

		// Flag overrides on top of the config file
		if v, _ := cmd.Flags().GetString("image-url"); v != "" {
			cfg.Image.URL = v
		}
		if v, _ := cmd.Flags().GetString("ssh-key"); v != "" {
			cfg.SSH.PublicKey = ""
			cfg.SSH.PublicKeyPath = v
		}
		if v, _ := cmd.Flags().GetInt("memory"); v > 0 {
			cfg.Defaults.MemoryMB = v
		}
		if v, _ := cmd.Flags().GetString("disk-size"); v != "" {
			cfg.Defaults.DiskSize = v
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
			Output:     os.Stderr,
		})

		def := lab.SingleDefinition()
		if dual, _ := cmd.Flags().GetBool("dual"); dual {
			def = lab.DualDefinition()
		}
		if labFile, _ := cmd.Flags().GetString("lab"); labFile != "" {
			def, err = lab.LoadDefinition(labFile)
			if err != nil {
				return err
			}
		}

		p, err := lab.NewProvisioner(cfg, def)
		if err != nil {
			return err
		}

		handles, err := p.Up(context.Background())
		if err != nil {
			return fmt.Errorf("provisioning failed: %w", err)
		}

		fmt.Println()
		fmt.Printf("✓ Lab '%s' is up (%d instance(s))\n", def.Name, len(handles))
		for _, h := range handles {
			fmt.Printf("  %-12s pid %-8d ssh -p %d labuser@localhost\n", h.Instance, h.PID, h.SSHPort)
			fmt.Printf("  %-12s log %s\n", "", h.LogPath)
		}
		fmt.Printf("\nAllow roughly %s for first boot before connecting.\n", supervisor.ApproxBootWait)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded lab instances and whether they are running",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")

		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}

		handles, err := lab.Status(cfg)
		if err != nil {
			return err
		}
		if len(handles) == 0 {
			fmt.Println("No lab instances recorded. Run 'ssh-lab up' first.")
			return nil
		}

		fmt.Printf("%-12s %-9s %-8s %-9s %s\n", "INSTANCE", "STATE", "PID", "SSH PORT", "LOG")
		for _, h := range handles {
			fmt.Printf("%-12s %-9s %-8d %-9d %s\n", h.Instance, h.State, h.PID, h.SSHPort, h.LogPath)
		}
		return nil
	},
}

func init() {
	upCmd.Flags().Bool("dual", false, "Launch the two-VM lab (target + attacker on an isolated segment)")
	upCmd.Flags().String("lab", "", "Path to a custom lab definition YAML")
	upCmd.Flags().String("workspace", "", "Workspace root (default ~/.qlab/ssh-lab)")
	upCmd.Flags().String("image-url", "", "Base cloud image URL override")
	upCmd.Flags().String("ssh-key", "", "Path to the SSH public key to inject")
	upCmd.Flags().Int("memory", 0, "Guest memory in MB override")
	upCmd.Flags().String("disk-size", "", "Overlay disk capacity override (e.g. 20G)")

	statusCmd.Flags().String("workspace", "", "Workspace root (default ~/.qlab/ssh-lab)")
}
