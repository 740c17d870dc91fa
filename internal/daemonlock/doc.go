// Package daemonlock provides the daemon's single-instance guard: pimeshd
// takes an advisory lock on daemon.pid.lock at startup and holds it for its
// whole lifetime, so a second daemon started against the same control
// directory refuses to run. Clients do not take this lock.
package daemonlock
