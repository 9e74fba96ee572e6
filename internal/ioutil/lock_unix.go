//go:build !windows

// Package ioutil's unix build takes a real advisory flock; the generalized
// per-OS split follows internal_local/cpu/cpu_no_name.go's build-tag-per-
// platform pattern (there: !386 !amd64 selects the no-CPU-name stub; here:
// !windows selects the flock-capable implementation).
package ioutil

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
