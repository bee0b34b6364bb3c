package tcp

import (
	"sync"

	"omapid/util/buffer"
)

// bufferSize matches one ring node so a full node moves in a single copy.
const bufferSize = buffer.NodeSize - 1

var bytesPool = sync.Pool{New: func() interface{} {
	return make([]byte, bufferSize)
}}
