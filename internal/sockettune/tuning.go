// Package sockettune applies socket tuning options directly to raw file
// descriptors — the reactor owns non-blocking fds from accept4(2), not
// net.Conn, so tuning operates on the fd rather than dialing through
// net.TCPConn.SyscallConn() as the teacher's socket package does.
// Platform-specific options live in tuning_linux.go/tuning_darwin.go,
// adapted from the teacher unchanged since those were already fd-based.
package sockettune

import "syscall"

// Config mirrors the teacher's socket.Config: zero values mean "use
// system defaults".
type Config struct {
	NoDelay     bool
	RecvBuffer  int
	SendBuffer  int
	QuickAck    bool
	DeferAccept bool
	FastOpen    bool
	KeepAlive   bool
}

// DefaultConfig returns the recommended configuration for HTTP workloads.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		QuickAck:    true,
		DeferAccept: true,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// ApplyFD applies socket tuning options directly to fd, which must be an
// already-accepted, non-blocking TCP socket.
func ApplyFD(fd int, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.NoDelay {
		if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
			return err
		}
	}
	if cfg.RecvBuffer > 0 {
		_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
	}
	if cfg.SendBuffer > 0 {
		_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
	}
	if cfg.KeepAlive {
		_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
	}

	applyPlatformOptions(fd, cfg)
	return nil
}

// ApplyListenerFD applies listener-only tuning (TCP_DEFER_ACCEPT,
// TCP_FASTOPEN on Linux) to a bound listening socket fd.
func ApplyListenerFD(fd int, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return applyListenerOptions(fd, cfg)
}
