package transport

import (
	"io"
	"io/ioutil"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func readN(t *testing.T, r io.Reader, n int) []byte {
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	return buf
}

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	s, err := Open("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Write([]byte{0x02, 0x01, 0x41})
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x01, 0x41}, readN(t, s, 3))
}

func TestOpenTCPListen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	connCh := make(chan io.ReadWriteCloser, 1)
	go func() {
		s, err := Open("tcp-listen://" + addr)
		if err == nil {
			connCh <- s
		}
	}()
	var conn net.Conn
	for i := 0; i < 100; i++ {
		if conn, err = net.Dial("tcp", addr); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()
	s := <-connCh
	defer s.Close()
	_, err = conn.Write([]byte{0x06})
	require.NoError(t, err)
	require.Equal(t, []byte{0x06}, readN(t, s, 1))
}

func TestOpenWebsocket(t *testing.T) {
	server := httptest.NewServer(WebsocketHandler(func(conn io.ReadWriteCloser) {
		io.Copy(conn, conn)
	}))
	defer server.Close()

	s, err := Open("ws" + strings.TrimPrefix(server.URL, "http"))
	require.NoError(t, err)
	defer s.Close()
	for _, b := range []byte{0x02, 0x00, 0x02, 0x03} {
		_, err = s.Write([]byte{b})
		require.NoError(t, err)
		require.Equal(t, []byte{b}, readN(t, s, 1))
	}
}

func TestOpenFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "framelink")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fn := filepath.Join(dir, "dev")
	require.NoError(t, ioutil.WriteFile(fn, []byte{0x02}, 0644))

	for _, u := range []string{fn, "file://" + fn} {
		s, err := Open(u)
		require.NoError(t, err)
		require.Equal(t, []byte{0x02}, readN(t, s, 1))
		require.NoError(t, s.Close())
	}

	_, err = Open(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("udp://localhost:1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "udp")
}
