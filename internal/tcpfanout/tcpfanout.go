// Package tcpfanout is a debug TCP fan-out: a raw TCP listener where
// each accepted connection becomes its own streamer.Consumer, writing
// every fused sample as the 13-field little-endian float32 wire frame
// with no additional framing.
package tcpfanout

import (
	"log"
	"net"

	"github.com/sixaxis-fusion/imud/internal/sample"
	"github.com/sixaxis-fusion/imud/internal/streamer"
)

// backlog bounds the number of concurrent debug clients this listener
// will serve; a small number is plenty for local debug tooling.
const backlog = 3

// Listen opens addr (e.g. ":7777") for Serve.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve accepts connections until the listener is closed, registering
// each one with s. Intended to run in its own goroutine.
func Serve(ln net.Listener, s *streamer.Streamer) {
	count := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("tcpfanout: accept loop ending: %v", err)
			return
		}
		if count >= backlog {
			// Best-effort cap on concurrent debug clients; extra
			// connections are accepted (so Accept doesn't wedge) then
			// immediately closed.
			conn.Close()
			continue
		}
		count++

		c := &connConsumer{conn: conn, streamer: s}
		id, ok := s.AddConsumer(c)
		if !ok {
			conn.Close()
			count--
			continue
		}
		c.id = id
	}
}

type connConsumer struct {
	conn     net.Conn
	streamer *streamer.Streamer
	id       uint64
}

func (c *connConsumer) Handle(s sample.Fused) {
	wire := sample.PackLE(s)
	if _, err := c.conn.Write(wire[:]); err != nil {
		c.streamer.RemoveConsumerAsync(c.id)
		c.conn.Close()
	}
}
