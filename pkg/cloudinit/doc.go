/*
Package cloudinit renders per-instance first-boot configuration documents from
embedded role templates.

A role template is opaque text carrying {{NAME}} placeholders; it is never
parsed as YAML. Rendering is literal token replacement, pure and deterministic:
identical inputs yield byte-identical output. A Document is only produced when
every declared token resolved — a missing or empty value is a hard error, so a
forgotten SSH key aborts provisioning instead of silently shipping an instance
nobody can log into.

The security payload inside the templates (fail2ban jail parameters, knockd
sequences, static network declarations) is assembled here but never interpreted;
the guest's provisioning agent consumes it on first boot.

# Usage

	doc, err := cloudinit.Render(types.RoleServer, map[string]string{
		cloudinit.TokenHostname:     "target",
		cloudinit.TokenInstanceName: "target",
		cloudinit.TokenSSHPublicKey: key,
		cloudinit.TokenLanIP:        "10.10.10.10",
		cloudinit.TokenLanMAC:       "52:54:00:12:34:50",
	})

The resulting Document pair (meta-data, user-data) is handed to pkg/seed for
packing into the cidata volume.
*/
package cloudinit
