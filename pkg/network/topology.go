package network

import (
	"fmt"
	"net"
)

const (
	// DefaultSubnetCIDR is the isolated inter-VM segment subnet
	DefaultSubnetCIDR = "10.10.10.0/24"

	// DefaultMACPrefix is the locally-administered prefix for assigned MACs
	DefaultMACPrefix = "52:54:00:12:34"

	// DefaultRendezvous is the multicast endpoint shared by all segment
	// participants. It is reachable only among cooperating QEMU processes.
	DefaultRendezvous = "230.0.0.1:1234"

	// hostOffset is the first host number handed out on the segment
	hostOffset = 10
)

// Endpoint is one instance's identity on the isolated segment. The same
// Endpoint feeds both the instance's first-boot network declaration and its
// QEMU device arguments, so the guest binds the right static IP by MAC.
type Endpoint struct {
	IP  string
	MAC string
}

// Allocator hands out pairwise-distinct Endpoint assignments for one run.
// The zero policy constants cover the two-VM lab; the allocator itself is
// only bounded by the subnet's host range, so larger labs need no code
// changes.
type Allocator struct {
	SubnetCIDR string
	MACPrefix  string
	Rendezvous string

	next int
}

// NewAllocator creates an allocator with the default segment policy
func NewAllocator() *Allocator {
	return &Allocator{
		SubnetCIDR: DefaultSubnetCIDR,
		MACPrefix:  DefaultMACPrefix,
		Rendezvous: DefaultRendezvous,
	}
}

// Next assigns the next Endpoint on the segment. Assignments within one
// allocator are pairwise distinct in both IP and MAC.
func (a *Allocator) Next() (Endpoint, error) {
	_, subnet, err := net.ParseCIDR(a.SubnetCIDR)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid segment subnet %q: %w", a.SubnetCIDR, err)
	}

	host := hostOffset + a.next
	if host > 254 {
		return Endpoint{}, fmt.Errorf("segment %s exhausted after %d assignments", a.SubnetCIDR, a.next)
	}

	base := subnet.IP.To4()
	if base == nil {
		return Endpoint{}, fmt.Errorf("segment subnet %q is not IPv4", a.SubnetCIDR)
	}

	ip := net.IPv4(base[0], base[1], base[2], byte(host))
	if !subnet.Contains(ip) {
		return Endpoint{}, fmt.Errorf("host %d outside segment %s", host, a.SubnetCIDR)
	}

	a.next++
	return Endpoint{
		IP:  ip.String(),
		// host is 10..254, so the final octet always renders as two hex digits
		MAC: fmt.Sprintf("%s:%02x", a.MACPrefix, host),
	}, nil
}

// NATDeviceArgs builds the QEMU arguments for an instance's user-mode NAT
// device, carrying the host SSH port forward to guest port 22. Every instance
// gets one for independent management reachability.
func NATDeviceArgs(instance string, sshPort int) []string {
	id := fmt.Sprintf("nat-%s", instance)
	return []string{
		"-netdev", fmt.Sprintf("user,id=%s,hostfwd=tcp::%d-:22", id, sshPort),
		"-device", fmt.Sprintf("virtio-net-pci,netdev=%s", id),
	}
}

// SegmentDeviceArgs builds the QEMU arguments for an instance's device on the
// isolated inter-VM segment: a multicast socket netdev common to all
// participants, with the instance's assigned MAC.
func (a *Allocator) SegmentDeviceArgs(instance string, ep Endpoint) []string {
	id := fmt.Sprintf("lan-%s", instance)
	return []string{
		"-netdev", fmt.Sprintf("socket,id=%s,mcast=%s", id, a.Rendezvous),
		"-device", fmt.Sprintf("virtio-net-pci,netdev=%s,mac=%s", id, ep.MAC),
	}
}
