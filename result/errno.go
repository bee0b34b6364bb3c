package result

import "golang.org/x/sys/unix"

// errnoTable is filled once at package initialisation and only read afterwards.
var errnoTable = buildErrnoTable()

func buildErrnoTable() map[unix.Errno]Code {
	table := map[unix.Errno]Code{
		unix.EPERM:           NoPermission,
		unix.ENOENT:          NotFound,
		unix.ESRCH:           NotFound,
		unix.EIO:             IOError,
		unix.ENXIO:           NotFound,
		unix.E2BIG:           NoSpace,
		unix.ENOEXEC:         FormErr,
		unix.ECHILD:          NotFound,
		unix.ENOMEM:          NoMemory,
		unix.EACCES:          NoPermission,
		unix.EFAULT:          InvalidArg,
		unix.EEXIST:          Exists,
		unix.EINVAL:          InvalidArg,
		unix.ENOTTY:          InvalidArg,
		unix.EFBIG:           NoSpace,
		unix.ENOSPC:          NoSpace,
		unix.EROFS:           NoPermission,
		unix.EMLINK:          NoSpace,
		unix.EPIPE:           NotConnected,
		unix.EINPROGRESS:     AlreadyRunning,
		unix.EALREADY:        AlreadyRunning,
		unix.ENOTSOCK:        InvalidFile,
		unix.EDESTADDRREQ:    DestAddrReq,
		unix.EMSGSIZE:        NoSpace,
		unix.EPROTOTYPE:      InvalidArg,
		unix.ENOPROTOOPT:     NotImplemented,
		unix.EPROTONOSUPPORT: NotImplemented,
		unix.ESOCKTNOSUPPORT: NotImplemented,
		unix.EOPNOTSUPP:      NotImplemented,
		unix.EPFNOSUPPORT:    NotImplemented,
		unix.EAFNOSUPPORT:    NotImplemented,
		unix.EADDRINUSE:      AddrInUse,
		unix.EADDRNOTAVAIL:   AddrNotAvail,
		unix.ENETDOWN:        NetDown,
		unix.ENETUNREACH:     NetUnreach,
		unix.ECONNABORTED:    TimedOut,
		unix.ECONNRESET:      ConnReset,
		unix.ENOBUFS:         NoSpace,
		unix.EISCONN:         AlreadyRunning,
		unix.ENOTCONN:        NotConnected,
		unix.ESHUTDOWN:       ShuttingDown,
		unix.ETIMEDOUT:       TimedOut,
		unix.ECONNREFUSED:    ConnRefused,
		unix.EHOSTDOWN:       HostDown,
		unix.EHOSTUNREACH:    HostUnreach,
		unix.EDQUOT:          Quota,
		unix.EOVERFLOW:       NoSpace,
	}
	for errno, code := range platformErrnos {
		table[errno] = code
	}
	return table
}

// Translate maps an OS error number onto the result space. Unknown
// numbers map to Unexpected.
func Translate(errno unix.Errno) Code {
	if code, ok := errnoTable[errno]; ok {
		return code
	}
	return Unexpected
}
