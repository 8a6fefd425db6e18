/*
Package types defines the core data structures shared across the ssh-lab
provisioner.

This package contains the domain model for lab provisioning: instance
definitions, base image states, and handles for launched VM processes. Types
here are serializable (JSON for the state store, YAML for lab definitions)
and carry no behavior beyond identity.

# Core Types

Lab Topology:
  - Role: Standalone, server (target), or client (attacker) role
  - LabInstance: One VM to provision, with memory, ports, and segment identity

Image Lifecycle:
  - ImageState: Missing, downloading, present

Process Lifecycle:
  - VMProcessHandle: A launched VM process with its PID, log, and port claims
  - ProcessState: Starting, running, stopped, crashed
*/
package types
