//go:build !unix

package clicklog

// crossProcessLocking reports whether lockFile excludes other processes.
const crossProcessLocking = false

// lockFile is a no-op where flock is unavailable; appends are then only
// serialized within one process.
func lockFile(path string) (func(), error) {
	return func() {}, nil
}
