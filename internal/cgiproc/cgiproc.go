// Package cgiproc implements the CGI/1.1 subset of §4.6: subprocess
// launch, environment population, non-blocking stdout drain, and CGI
// document parsing. The connection orchestrator owns a *Process once it
// becomes pending; cgiproc never blocks waiting for exit.
package cgiproc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/watt-labs/webserv/internal/httpparse"
)

var (
	// ErrScriptNotFound maps to a 404 per §4.6 step 1.
	ErrScriptNotFound = errors.New("cgiproc: script not found")
	// ErrScriptNotExecutable maps to a 403 per §4.6 step 1.
	ErrScriptNotExecutable = errors.New("cgiproc: script not executable")
	// ErrLaunchFailed maps to a 500 per §7.
	ErrLaunchFailed = errors.New("cgiproc: subprocess launch failed")
)

// MaxOutput is the CGI stdout accumulator cap (§5 resource ceilings).
const MaxOutput = 10 * 1024 * 1024

// interpreterFor maps a script extension to its interpreter, per §4.6
// step 2 ("interpreter python3 for .py").
func interpreterFor(scriptPath string) (string, error) {
	switch filepath.Ext(scriptPath) {
	case ".py":
		return "python3", nil
	default:
		return "", fmt.Errorf("cgiproc: no interpreter registered for %s", scriptPath)
	}
}

// Process is a launched CGI subprocess the orchestrator polls to
// completion. Exactly one goroutine is spawned per Process, solely to
// call cmd.Wait() — os/exec exposes no non-blocking wait, so this is the
// minimal concession a single-thread reactor built on it must make; all
// I/O (stdout drain) remains non-blocking on the event-loop thread.
type Process struct {
	cmd      *exec.Cmd
	stdoutR  *os.File
	exitCh   chan error
	exited   bool
	exitErr  error
}

// Launch starts the CGI subprocess for scriptPath against req, per §4.6
// steps 1-4. The returned Process is immediately pending; the caller must
// poll Drain and Exited rather than blocking on completion.
func Launch(scriptPath string, req *httpparse.Request, rawQuery string) (*Process, error) {
	info, err := os.Stat(scriptPath)
	if err != nil {
		return nil, ErrScriptNotFound
	}
	if info.Mode()&0o111 == 0 {
		return nil, ErrScriptNotExecutable
	}

	interpreter, err := interpreterFor(scriptPath)
	if err != nil {
		return nil, ErrLaunchFailed
	}

	absScript, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, ErrLaunchFailed
	}

	cmd := exec.Command(interpreter, absScript)
	cmd.Dir = filepath.Dir(absScript)
	cmd.Env = buildEnv(req, absScript, rawQuery)

	if req.BodyFile != nil {
		cmd.Stdin = req.BodyFile
	} else if len(req.BodyBytes) > 0 {
		cmd.Stdin = bytes.NewReader(req.BodyBytes)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, ErrLaunchFailed
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stdoutW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, ErrLaunchFailed
	}
	stdoutW.Close()

	if err := syscall.SetNonblock(int(stdoutR.Fd()), true); err != nil {
		cmd.Process.Kill()
		stdoutR.Close()
		return nil, ErrLaunchFailed
	}

	p := &Process{cmd: cmd, stdoutR: stdoutR, exitCh: make(chan error, 1)}
	go func() {
		p.exitCh <- cmd.Wait()
	}()
	return p, nil
}

func buildEnv(req *httpparse.Request, absScript, rawQuery string) []string {
	contentType, _ := req.Headers.First("content-type")
	contentLength := "0"
	if req.BodyFile != nil {
		if info, err := req.BodyFile.Stat(); err == nil {
			contentLength = strconv.FormatInt(info.Size(), 10)
		}
	} else {
		contentLength = strconv.Itoa(len(req.BodyBytes))
	}

	env := append(os.Environ(),
		"SERVER_PROTOCOL=HTTP/1.1",
		"GATEWAY_INTERFACE=CGI/1.1",
		"REQUEST_METHOD="+req.Method.String(),
		"REQUEST_URI="+req.Path,
		"SCRIPT_NAME="+req.Path,
		"PATH_INFO="+absScript,
		"QUERY_STRING="+rawQuery,
		"CONTENT_TYPE="+contentType,
		"CONTENT_LENGTH="+contentLength,
	)
	return env
}

// Drain performs one non-blocking read of whatever stdout/stderr bytes are
// currently available, returning io.EOF once the child has closed its
// write end (which Exited later confirms via cmd.Wait()).
func (p *Process) Drain(buf []byte) (int, error) {
	n, err := p.stdoutR.Read(buf)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return 0, nil
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.EAGAIN) {
			return 0, nil
		}
	}
	return n, err
}

// Exited reports whether the subprocess has exited, without blocking.
func (p *Process) Exited() (bool, error) {
	if p.exited {
		return true, p.exitErr
	}
	select {
	case err := <-p.exitCh:
		p.exited = true
		p.exitErr = err
		return true, err
	default:
		return false, nil
	}
}

// Kill force-terminates the subprocess (5 s wall-clock overrun, or
// connection close with a pending CGI), per §4.6 and §5 Cancellation.
func (p *Process) Kill() {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.stdoutR.Close()
}

// Close releases the read end of the stdout pipe. Safe after Kill.
func (p *Process) Close() {
	p.stdoutR.Close()
}

// Document is a parsed CGI output: an optional header block (recognizing
// the Status pseudo-header) followed by the body.
type Document struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// ParseDocument parses raw CGI subprocess output per §4.6: if no blank-line
// terminated header block is present, the entire output is the body with
// status 200; a Status: NNN [reason] header, if present, sets Status.
func ParseDocument(raw []byte) Document {
	doc := Document{Status: 200, Headers: make(map[string]string)}

	idx := bytes.Index(raw, []byte("\r\n\r\n"))
	sep := 4
	if idx < 0 {
		idx = bytes.Index(raw, []byte("\n\n"))
		sep = 2
	}
	if idx < 0 || !looksLikeHeaderBlock(raw[:idx]) {
		doc.Body = raw
		return doc
	}

	block := raw[:idx]
	doc.Body = raw[idx+sep:]

	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			doc.Body = raw
			doc.Headers = make(map[string]string)
			doc.Status = 200
			return doc
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if strings.EqualFold(name, "Status") {
			fields := strings.Fields(value)
			if len(fields) > 0 {
				if code, err := strconv.Atoi(fields[0]); err == nil {
					doc.Status = code
				}
			}
			continue
		}
		doc.Headers[name] = value
	}
	return doc
}

func looksLikeHeaderBlock(block []byte) bool {
	if len(block) == 0 {
		return false
	}
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !strings.Contains(line, ":") {
			return false
		}
	}
	return true
}
