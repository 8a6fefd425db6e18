package network

import (
	"net"
	"strings"
	"testing"
)

func TestAllocator_Next(t *testing.T) {
	a := NewAllocator()

	ep, err := a.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	if ep.IP != "10.10.10.10" {
		t.Errorf("IP = %v, want 10.10.10.10", ep.IP)
	}
	if ep.MAC != "52:54:00:12:34:0a" {
		t.Errorf("MAC = %v, want 52:54:00:12:34:0a", ep.MAC)
	}
}

func TestAllocator_PairwiseDistinct(t *testing.T) {
	a := NewAllocator()

	ips := make(map[string]bool)
	macs := make(map[string]bool)

	for i := 0; i < 20; i++ {
		ep, err := a.Next()
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if _, err := net.ParseMAC(ep.MAC); err != nil {
			t.Errorf("assignment #%d produced invalid MAC %q: %v", i, ep.MAC, err)
		}
		if ips[ep.IP] {
			t.Errorf("duplicate IP assigned: %s", ep.IP)
		}
		if macs[ep.MAC] {
			t.Errorf("duplicate MAC assigned: %s", ep.MAC)
		}
		ips[ep.IP] = true
		macs[ep.MAC] = true
	}
}

func TestAllocator_Exhaustion(t *testing.T) {
	a := NewAllocator()

	// 10..254 inclusive are assignable, and every assignment must be a MAC
	// the virtualization engine accepts
	for i := 0; i < 245; i++ {
		ep, err := a.Next()
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if _, err := net.ParseMAC(ep.MAC); err != nil {
			t.Fatalf("assignment #%d produced invalid MAC %q: %v", i, ep.MAC, err)
		}
	}

	if _, err := a.Next(); err == nil {
		t.Error("Next() should fail once the segment host range is exhausted")
	}
}

func TestAllocator_CustomSubnet(t *testing.T) {
	a := &Allocator{
		SubnetCIDR: "192.168.77.0/24",
		MACPrefix:  "52:54:00:aa:bb",
		Rendezvous: "230.0.0.2:4321",
	}

	ep, err := a.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ep.IP != "192.168.77.10" {
		t.Errorf("IP = %v, want 192.168.77.10", ep.IP)
	}
	if !strings.HasPrefix(ep.MAC, "52:54:00:aa:bb:") {
		t.Errorf("MAC = %v, want prefix 52:54:00:aa:bb:", ep.MAC)
	}
}

func TestAllocator_InvalidSubnet(t *testing.T) {
	a := &Allocator{SubnetCIDR: "not-a-subnet"}

	if _, err := a.Next(); err == nil {
		t.Error("Next() should fail for an invalid subnet")
	}
}

func TestNATDeviceArgs(t *testing.T) {
	args := NATDeviceArgs("sshserver", 2222)

	if len(args) != 4 {
		t.Fatalf("args = %v, want 4 elements", args)
	}
	if args[1] != "user,id=nat-sshserver,hostfwd=tcp::2222-:22" {
		t.Errorf("netdev arg = %v", args[1])
	}
	if !strings.Contains(args[3], "netdev=nat-sshserver") {
		t.Errorf("device arg = %v", args[3])
	}
}

func TestSegmentDeviceArgs(t *testing.T) {
	a := NewAllocator()
	ep, err := a.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	args := a.SegmentDeviceArgs("target", ep)

	if args[1] != "socket,id=lan-target,mcast="+DefaultRendezvous {
		t.Errorf("netdev arg = %v", args[1])
	}
	if !strings.Contains(args[3], "mac="+ep.MAC) {
		t.Errorf("device arg %v missing assigned MAC %v", args[3], ep.MAC)
	}
}

func TestSegmentDeviceArgs_SharedRendezvous(t *testing.T) {
	a := NewAllocator()

	first, err := a.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	second, err := a.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	serverArgs := a.SegmentDeviceArgs("target", first)
	clientArgs := a.SegmentDeviceArgs("attacker", second)

	// Both participants must reference the same rendezvous endpoint
	if !strings.Contains(serverArgs[1], DefaultRendezvous) {
		t.Errorf("server netdev %v missing rendezvous", serverArgs[1])
	}
	if !strings.Contains(clientArgs[1], DefaultRendezvous) {
		t.Errorf("client netdev %v missing rendezvous", clientArgs[1])
	}
}
