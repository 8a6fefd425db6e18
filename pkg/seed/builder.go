package seed

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/cloudinit"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"
)

// ErrMediaBuild indicates the seed volume could not be authored. Seed media
// is mandatory for first boot and has no fallback, so this is fatal to the run.
var ErrMediaBuild = errors.New("seed media build failed")

// VolumeLabel is the fixed discovery label the guest's provisioning agent
// looks for
const VolumeLabel = "cidata"

// Entry names inside the volume, fixed regardless of instance name
const (
	entryUserData = "user-data"
	entryMetaData = "meta-data"
)

// authoringTools lists the ISO authoring tools in preference order
var authoringTools = []string{"cloud-localds", "genisoimage", "mkisofs"}

// Builder authors read-only seed volumes from rendered documents
type Builder struct {
	logger zerolog.Logger
}

// NewBuilder creates a seed media builder
func NewBuilder() *Builder {
	return &Builder{
		logger: log.WithComponent("seed-media"),
	}
}

// Build packs one document into a read-only ISO9660 volume at outPath,
// labeled for discovery. Any pre-existing file at outPath is overwritten;
// distinct instances require distinct output paths.
func (b *Builder) Build(doc *cloudinit.Document, outPath string) error {
	tool, err := locateTool()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %v", ErrMediaBuild, err)
	}

	staging, err := os.MkdirTemp("", "seed-staging-")
	if err != nil {
		return fmt.Errorf("%w: failed to create staging directory: %v", ErrMediaBuild, err)
	}
	defer os.RemoveAll(staging)

	userPath := filepath.Join(staging, entryUserData)
	metaPath := filepath.Join(staging, entryMetaData)
	if err := os.WriteFile(userPath, []byte(doc.UserData), 0644); err != nil {
		return fmt.Errorf("%w: failed to stage user-data: %v", ErrMediaBuild, err)
	}
	if err := os.WriteFile(metaPath, []byte(doc.MetaData), 0644); err != nil {
		return fmt.Errorf("%w: failed to stage meta-data: %v", ErrMediaBuild, err)
	}

	args := buildArgs(tool, outPath, userPath, metaPath)
	b.logger.Debug().Str("tool", tool).Strs("args", args).Msg("Authoring seed volume")

	cmd := exec.Command(tool, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s failed: %v (output: %s)", ErrMediaBuild, tool, err, output)
	}

	b.logger.Info().Str("path", outPath).Msg("Seed volume built")
	return nil
}

// AuthoringTools returns the recognized ISO authoring tools in preference
// order
func AuthoringTools() []string {
	return authoringTools
}

// locateTool finds the first available ISO authoring tool
func locateTool() (string, error) {
	for _, tool := range authoringTools {
		if _, err := exec.LookPath(tool); err == nil {
			return tool, nil
		}
	}
	return "", fmt.Errorf("%w: no authoring tool found (tried %v)", ErrMediaBuild, authoringTools)
}

// buildArgs assembles the authoring command line for a tool
func buildArgs(tool, outPath, userPath, metaPath string) []string {
	if tool == "cloud-localds" {
		// cloud-localds labels the volume cidata itself
		return []string{outPath, userPath, metaPath}
	}

	// genisoimage and mkisofs share the same flags
	return []string{
		"-output", outPath,
		"-volid", VolumeLabel,
		"-joliet", "-rock",
		userPath, metaPath,
	}
}
