// Package naming implements the control-mesh addressing model: the on-disk
// control directory layout, safe-id validation, whimsical auto-name
// generation, and alias symlink reconciliation shared by the session
// endpoint and the daemon.
package naming
