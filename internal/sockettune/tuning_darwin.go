//go:build darwin
// +build darwin

package sockettune

import (
	"syscall"
)

// Darwin-specific socket options.
const (
	// TCP_FASTOPEN - enable TCP Fast Open on macOS (10.11+).
	TCP_FASTOPEN = 0x105

	// TCP_KEEPALIVE - macOS equivalent of Linux TCP_KEEPIDLE.
	TCP_KEEPALIVE = 0x10

	// SO_NOSIGPIPE - don't send SIGPIPE on broken pipe.
	SO_NOSIGPIPE = 0x1022
)

// applyPlatformOptions applies Darwin-specific socket options. Called
// from ApplyFD in tuning.go.
func applyPlatformOptions(fd int, cfg *Config) {
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, SO_NOSIGPIPE, 1)
	if cfg.KeepAlive {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, TCP_KEEPALIVE, 60)
	}
}

// applyListenerOptions applies Darwin-specific listener options. Called
// from ApplyListenerFD in tuning.go. Darwin has no TCP_DEFER_ACCEPT
// equivalent, so DeferAccept is ignored here.
func applyListenerOptions(fd int, cfg *Config) error {
	var lastErr error
	if cfg.FastOpen {
		if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, TCP_FASTOPEN, 256); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
