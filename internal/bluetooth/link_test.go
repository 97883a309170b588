package bluetooth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type fakePort struct {
	writes   [][]byte
	closed   bool
	writeErr error
	closeErr error
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return p.closeErr
}

func withFakePort(t *testing.T, port *fakePort, openErr error) *serial.Mode {
	t.Helper()
	var gotMode serial.Mode
	orig := openPort
	openPort = func(path string, mode *serial.Mode) (io.WriteCloser, error) {
		gotMode = *mode
		if openErr != nil {
			return nil, openErr
		}
		return port, nil
	}
	t.Cleanup(func() { openPort = orig })
	return &gotMode
}

func staticResolver(path string, released *int) portResolver {
	return func(context.Context, string) (string, func() error, error) {
		return path, func() error {
			*released++
			return nil
		}, nil
	}
}

func TestSerialLinkRoundTrip(t *testing.T) {
	port := &fakePort{}
	mode := withFakePort(t, port, nil)
	released := 0
	l := newSerialLink(Options{WriteChunk: 4, BaudRate: 9600}, staticResolver("/dev/rfcomm0", &released))

	require.NoError(t, l.Connect(context.Background(), "AA:BB"))
	assert.True(t, l.IsConnected())
	assert.Equal(t, "/dev/rfcomm0", l.PortName())
	assert.Equal(t, 9600, mode.BaudRate)

	require.NoError(t, l.Write(context.Background(), []byte("0123456789")))
	assert.Equal(t, [][]byte{[]byte("0123"), []byte("4567"), []byte("89")}, port.writes)

	require.NoError(t, l.Disconnect())
	assert.True(t, port.closed)
	assert.Equal(t, 1, released)
	assert.False(t, l.IsConnected())

	require.NoError(t, l.Disconnect(), "second disconnect is a no-op")
	assert.Equal(t, 1, released)
}

func TestSerialLinkWriteNotConnected(t *testing.T) {
	l := newSerialLink(Options{}, staticResolver("/dev/null", new(int)))
	assert.ErrorIs(t, l.Write(context.Background(), []byte{0x1b, 0x40}), ErrNotConnected)
}

func TestSerialLinkOpenFailureReleases(t *testing.T) {
	withFakePort(t, nil, errors.New("permission denied"))
	released := 0
	l := newSerialLink(Options{}, staticResolver("/dev/rfcomm3", &released))

	err := l.Connect(context.Background(), "AA:BB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/rfcomm3")
	assert.Equal(t, 1, released)
	assert.False(t, l.IsConnected())
}

func TestSerialLinkWriteFailure(t *testing.T) {
	port := &fakePort{writeErr: errors.New("broken pipe")}
	withFakePort(t, port, nil)
	l := newSerialLink(Options{}, staticResolver("/dev/rfcomm0", new(int)))
	require.NoError(t, l.Connect(context.Background(), "AA:BB"))

	err := l.Write(context.Background(), []byte("hello"))
	require.Error(t, err)
	assert.True(t, l.IsConnected(), "a failed write does not drop the link")
}

func TestSerialLinkPacedWriteHonoursContext(t *testing.T) {
	port := &fakePort{}
	withFakePort(t, port, nil)
	// 1 byte/s with a 4 byte burst: the second chunk would wait for seconds.
	l := newSerialLink(Options{WriteChunk: 4, BytesPerSecond: 1}, staticResolver("/dev/rfcomm0", new(int)))
	require.NoError(t, l.Connect(context.Background(), "AA:BB"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Write(ctx, bytes.Repeat([]byte{'x'}, 8))
	assert.Error(t, err)
	assert.Len(t, port.writes, 0)
}

func TestSerialLinkDisconnectReportsCloseError(t *testing.T) {
	port := &fakePort{closeErr: errors.New("EIO")}
	withFakePort(t, port, nil)
	l := newSerialLink(Options{}, staticResolver("/dev/rfcomm0", new(int)))
	require.NoError(t, l.Connect(context.Background(), "AA:BB"))

	assert.Error(t, l.Disconnect())
	assert.False(t, l.IsConnected(), "state is cleared even when close fails")
}

func TestDeviceDisplayName(t *testing.T) {
	assert.Equal(t, "POS-80", Device{Address: "AA", Name: "POS-80"}.DisplayName())
	assert.Equal(t, "AA", Device{Address: "AA", Name: "  "}.DisplayName())
}
