//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package result

import "golang.org/x/sys/unix"

// RPC and authentication errnos only exist on the BSD family.
var platformErrnos = map[unix.Errno]Code{
	unix.EBADRPC:       NotImplemented,
	unix.ERPCMISMATCH:  VersionMismatch,
	unix.EPROGMISMATCH: VersionMismatch,
	unix.EAUTH:         NotAuth,
	unix.ENEEDAUTH:     NotAuth,
}
