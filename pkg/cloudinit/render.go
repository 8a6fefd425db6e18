package cloudinit

import (
	"embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

//go:embed templates
var templates embed.FS

var (
	// ErrUnknownRole indicates no template set exists for the requested role
	ErrUnknownRole = errors.New("unknown instance role")

	// ErrMissingValue indicates a template token has no substitution value.
	// Rendering refuses to degrade silently to an empty string.
	ErrMissingValue = errors.New("missing substitution value")

	// ErrUnresolvedToken indicates a rendered document still contains the
	// token delimiter pattern
	ErrUnresolvedToken = errors.New("unresolved template token")

	// ErrDelimiterInValue indicates a substitution value contains the token
	// delimiter and would corrupt the rendered output
	ErrDelimiterInValue = errors.New("substitution value contains token delimiter")
)

// Token names accepted by the role templates
const (
	TokenHostname     = "HOSTNAME"
	TokenInstanceName = "INSTANCE_NAME"
	TokenSSHPublicKey = "SSH_PUBLIC_KEY"
	TokenLanIP        = "LAN_IP"
	TokenLanMAC       = "LAN_MAC"
)

// tokenPattern matches the {{NAME}} placeholders spliced into role templates.
// Templates are opaque text; they are never parsed as YAML.
var tokenPattern = regexp.MustCompile(`\{\{([A-Z_]+)\}\}`)

// Document is the (metadata, first-boot-configuration) pair for one instance.
// It is sealed: a Document never contains an unresolved token.
type Document struct {
	MetaData string
	UserData string
}

// Render produces the first-boot configuration document for a role by literal
// token replacement. Every token declared in the role template must have a
// value; rendering is pure and deterministic, so identical inputs yield
// byte-identical output.
func Render(role types.Role, values map[string]string) (*Document, error) {
	metaRaw, err := templates.ReadFile(fmt.Sprintf("templates/%s/meta-data", role))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	userRaw, err := templates.ReadFile(fmt.Sprintf("templates/%s/user-data", role))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}

	for name, value := range values {
		if strings.Contains(value, "{{") || strings.Contains(value, "}}") {
			return nil, fmt.Errorf("%w: %s", ErrDelimiterInValue, name)
		}
	}

	meta, err := substitute(string(metaRaw), values)
	if err != nil {
		return nil, fmt.Errorf("meta-data for role %s: %w", role, err)
	}
	user, err := substitute(string(userRaw), values)
	if err != nil {
		return nil, fmt.Errorf("user-data for role %s: %w", role, err)
	}

	return &Document{MetaData: meta, UserData: user}, nil
}

// Tokens returns the sorted set of token names declared by a role's templates
func Tokens(role types.Role) ([]string, error) {
	seen := map[string]bool{}
	for _, entry := range []string{"meta-data", "user-data"} {
		raw, err := templates.ReadFile(fmt.Sprintf("templates/%s/%s", role, entry))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		for _, m := range tokenPattern.FindAllStringSubmatch(string(raw), -1) {
			seen[m[1]] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// substitute replaces every declared token and verifies none remain
func substitute(text string, values map[string]string) (string, error) {
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		value, ok := values[name]
		if !ok || value == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingValue, name)
		}
		text = strings.ReplaceAll(text, m[0], value)
	}

	if rest := tokenPattern.FindString(text); rest != "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedToken, rest)
	}
	return text, nil
}
