/*
Package lab orchestrates the provisioning pipeline for one- and two-VM SSH
training labs.

A lab is described by a Definition: a static list of instances with roles,
host SSH ports, and memory sizes. The built-in definitions cover the single
hardened server and the target+attacker pair; a YAML definition file scales
the same pipeline to more participants.

The Provisioner runs the pipeline:

	preflight -> base image (barrier) -> per-instance pipelines:
	    render document -> seed media -> overlay disk -> launch

Per-instance pipelines are independent and run concurrently once the shared
base image is present; every artifact lives at an instance-distinct path, so
no locking is needed beyond the path namespace. Failures are fatal to the run
and never roll back completed steps: an already-launched sibling instance is
deliberately left running, and the next 'up' resets everything by recreating
overlays and seed media.
*/
package lab
