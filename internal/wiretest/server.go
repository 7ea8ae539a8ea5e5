// Package wiretest provides a scripted, in-process wire server for tests.
package wiretest

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
)

// NoReply makes the server read a request without answering it.
const NoReply = "\x00no-reply"

// Handler produces the reply line for one request line.
type Handler func(line string) string

// Server accepts wire connections on 127.0.0.1 and answers each
// request line with its handler.
type Server struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	received []string
	accepted int
	conns    []net.Conn
	wg       sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, h Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &Server{ln: ln, handler: h}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the listening host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Port returns the listening port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// Received returns every request line seen so far, in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Count returns how many received lines equal line.
func (s *Server) Count(line string) int {
	n := 0
	for _, r := range s.Received() {
		if r == line {
			n++
		}
	}
	return n
}

// Accepted returns the number of connections accepted.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// DropConnections closes every accepted connection, simulating a
// remote that went away.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

// Close stops the listener and drops all connections.
func (s *Server) Close() {
	s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accepted++
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()

		reply := s.handler(line)
		if reply == NoReply {
			continue
		}
		if _, err := io.WriteString(conn, reply+"\n"); err != nil {
			return
		}
	}
}
