/*
Package supervisor launches VM processes and tracks their liveness.

A launch assembles the virtualization engine command line from an instance's
overlay disk, seed media, memory size, and network devices, starts the
process in its own session with console output redirected to a per-instance
log, and returns immediately. There is no readiness probe and no automatic
restart: boot is awaited only by the documented approximate wait, and a
crashed VM is observable through its log or the dead forwarded port.
*/
package supervisor
