// Package reactor implements §4.7 (Connection Orchestrator) and §4.8
// (Event Loop): a single-threaded, readiness-driven dispatcher built on
// raw epoll via golang.org/x/sys/unix. The teacher's HTTP engine never
// does this — shockwave/pkg/shockwave/server.Server is goroutine-per-
// connection over net.Conn — so this package is new code; it is grounded
// on golang.org/x/sys/unix itself (already an indirect dependency of both
// shockwave and bolt) rather than on a teacher usage pattern that doesn't
// exist. See DESIGN.md.
package reactor

import (
	"log"
	"time"

	"golang.org/x/sys/unix"

	"github.com/watt-labs/webserv/internal/accesslog"
	"github.com/watt-labs/webserv/internal/config"
	"github.com/watt-labs/webserv/internal/session"
	"github.com/watt-labs/webserv/internal/sockettune"
)

const (
	pollTimeoutMS   = 50
	idleTimeout     = 10 * time.Second
	readBufSize     = 8 * 1024
	fileStreamSlice = 32 * 1024
	maxEvents       = 256
)

// listener is one bound, listening socket shared by every virtual host
// configured for its (host, port) group, per §4.8.
type listener struct {
	fd      int
	servers []*config.Server
}

// Reactor is the process-wide event loop: one epoll instance, the
// listeners it accepts on, and the live connections it drives.
type Reactor struct {
	cfg          *config.Config
	epfd         int
	listeners    map[int]*listener
	conns        map[int]*conn
	sessionStore *session.Store
	access       *accesslog.Logger
}

// New creates a Reactor for cfg. Call Run to bind listeners and start the
// event loop.
func New(cfg *config.Config) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Reactor{
		cfg:          cfg,
		epfd:         epfd,
		listeners:    make(map[int]*listener),
		conns:        make(map[int]*conn),
		sessionStore: session.New(),
		access:       accesslog.New(),
	}, nil
}

// Run binds one listening socket per (host,port) group and runs the event
// loop until an unrecoverable error occurs. Per-connection and per-accept
// errors never unwind the loop, per §4.8 step 3.
func (r *Reactor) Run() error {
	for key, servers := range r.cfg.Groups {
		if err := r.openListener(key, servers); err != nil {
			return err
		}
	}

	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(r.epfd, events, pollTimeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		r.timeoutSweep()
		r.cgiSweep()

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			ev := events[i].Events

			if l, ok := r.listeners[fd]; ok {
				r.acceptAll(l)
				continue
			}

			c, ok := r.conns[fd]
			if !ok {
				continue
			}
			if ev&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				r.closeConn(c)
				continue
			}
			if ev&unix.EPOLLIN != 0 {
				r.onReadable(c)
				continue
			}
			if ev&unix.EPOLLOUT != 0 {
				r.onWritable(c)
			}
		}
	}
}

func (r *Reactor) openListener(hostPort string, servers []*config.Server) error {
	host := servers[0].Host
	var port int
	for i := len(hostPort) - 1; i >= 0; i-- {
		if hostPort[i] == ':' {
			for _, c := range hostPort[i+1:] {
				port = port*10 + int(c-'0')
			}
			break
		}
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	var addr [4]byte
	parseIPv4(host, &addr)

	sa := &unix.SockaddrInet4{Port: port, Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return err
	}
	_ = sockettune.ApplyListenerFD(fd, nil)

	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		unix.Close(fd)
		return err
	}

	r.listeners[fd] = &listener{fd: fd, servers: servers}
	log.Printf("reactor: listening on %s:%d (%d virtual host(s))", host, port, len(servers))
	return nil
}

func parseIPv4(s string, out *[4]byte) {
	var part, idx int
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			out[idx] = byte(part)
			idx++
			part = 0
			continue
		}
		part = part*10 + int(s[i]-'0')
	}
}

func (r *Reactor) acceptAll(l *listener) {
	for {
		fd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EINTR {
				continue
			}
			log.Printf("reactor: accept error on fd %d: %v", l.fd, err)
			return
		}

		_ = sockettune.ApplyFD(fd, nil)

		c := newConn(fd, l.servers)
		r.conns[fd] = c

		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}); err != nil {
			r.closeConn(c)
		}
	}
}

func (r *Reactor) setInterest(c *conn, events uint32) {
	unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(c.fd),
	})
}

func (r *Reactor) closeConn(c *conn) {
	unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	delete(r.conns, c.fd)
	c.release()
	unix.Close(c.fd)
}
