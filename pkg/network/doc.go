/*
Package network assigns per-instance network identity and builds the QEMU
device arguments realizing the lab topology.

Every instance gets a user-mode NAT device carrying a host-port forward to
guest port 22 for management access. Instances of a multi-VM lab additionally
share an isolated segment realized as a multicast socket netdev: a rendezvous
endpoint common to all participants and unreachable outside the cooperating
QEMU processes. The Allocator hands out pairwise-distinct {IP, MAC} pairs on
that segment; the guest binds its static IP by matching the assigned MAC, so
the Endpoint handed to QEMU and the one rendered into the first-boot document
must be the same value.
*/
package network
