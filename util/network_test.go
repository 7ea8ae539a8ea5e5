package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAddr(t *testing.T) {
	assert.Equal(t, "localhost:3902", FormatAddr("localhost", 3902))
	assert.Equal(t, "[::1]:3902", FormatAddr("::1", 3902))
}

func TestSplitAddr(t *testing.T) {
	host, port, err := SplitAddr("127.0.0.1:3902")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 3902, port)

	_, _, err = SplitAddr("127.0.0.1")
	assert.Error(t, err)
	_, _, err = SplitAddr("127.0.0.1:abc")
	assert.Error(t, err)
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", FormatAddr("127.0.0.1", port))
	require.NoError(t, err)
	ln.Close()
}
