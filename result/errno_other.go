//go:build !(darwin || dragonfly || freebsd || netbsd || openbsd)

package result

import "golang.org/x/sys/unix"

var platformErrnos = map[unix.Errno]Code{}
