// Package transport opens byte streams by URL.
package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// DefaultOrigin is the Origin header used by websocket connections.
const DefaultOrigin = "http://localhost/"

// Open opens a byte stream. Supported URLs are:
//
//     tcp://host:port           connect to a TCP server
//     tcp-listen://host:port    accept a single TCP connection
//     ws://host/path, wss://    websocket with binary frames
//     file:///dev/ttyUSB0       device or regular file
//     /dev/ttyUSB0              same as file://
//
// Line settings of serial devices are expected to be configured externally.
func Open(rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %v", rawURL, err)
	}
	glog.V(1).Infof("open %s", rawURL)
	var conn io.ReadWriteCloser
	switch u.Scheme {
	case "tcp":
		conn, err = net.Dial("tcp", u.Host)
	case "tcp-listen":
		conn, err = acceptOne(u.Host)
	case "ws", "wss":
		conn, err = DialWebsocket(rawURL, DefaultOrigin)
	case "file":
		conn, err = OpenFile(u.Path)
	case "":
		conn, err = OpenFile(rawURL)
	default:
		return nil, fmt.Errorf("unknown stream URL scheme: %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// OpenFile opens a device or regular file for read and write.
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

// DialWebsocket connects to a websocket server and switches to binary
// frames.
func DialWebsocket(rawURL, origin string) (*websocket.Conn, error) {
	conn, err := websocket.Dial(rawURL, "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// WebsocketHandler serves each websocket connection as a byte stream.
func WebsocketHandler(serve func(io.ReadWriteCloser)) websocket.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		serve(conn)
	})
}

func acceptOne(addr string) (net.Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	glog.Infof("waiting for connection on %s", ln.Addr())
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	glog.Infof("accepted %s", conn.RemoteAddr())
	return conn, nil
}
