package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIPAddr(t *testing.T) {
	type testCase struct {
		address string
		ip      [4]byte
		port    int
		err     bool
	}
	testCases := []testCase{
		{address: "127.0.0.1:7911", ip: [4]byte{127, 0, 0, 1}, port: 7911},
		{address: ":7911", port: 7911},
		{address: "0.0.0.0:0"},
		{address: "localhost", err: true},
		{address: "1.2.3.4:70000", err: true},
		{address: "[::1]:7911", err: true},
	}
	for _, tc := range testCases {
		ip, port, err := parseIPAddr(tc.address)
		if tc.err {
			assert.Error(t, err, tc.address)
			continue
		}
		require.NoError(t, err, tc.address)
		assert.Equal(t, tc.ip, ip, tc.address)
		assert.Equal(t, tc.port, port, tc.address)
	}
}
