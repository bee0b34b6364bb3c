package main

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestErrnoCommand(t *testing.T) {
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"errno", strconv.Itoa(int(unix.ECONNRESET))})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "ECONNRESET")
	assert.Contains(t, out.String(), "connection reset")

	rootCmd.SetArgs([]string{"errno", "not-a-number"})
	assert.Error(t, rootCmd.Execute())
}
