package httpparse

import "errors"

// Parser errors. Grouped the way http11/errors.go groups its sentinels —
// one var block per parsing phase, one doc comment per sentinel.
var (
	// ErrInvalidRequestLine indicates the request line is malformed.
	ErrInvalidRequestLine = errors.New("httpparse: invalid request line")

	// ErrRequestLineTooLarge indicates the request line exceeds 8 KiB
	// without a terminating CRLF being found.
	ErrRequestLineTooLarge = errors.New("httpparse: request line too large")

	// ErrTooManyBlankLines indicates more than 10 leading CRLF pairs were
	// seen before the request line (keep-alive noise tolerance exceeded).
	ErrTooManyBlankLines = errors.New("httpparse: too many leading blank lines")

	// ErrInvalidMethod indicates the method token is not GET, POST, or
	// DELETE.
	ErrInvalidMethod = errors.New("httpparse: invalid or unsupported method")

	// ErrURITooLong indicates the request-URI exceeds 4 KiB.
	ErrURITooLong = errors.New("httpparse: uri too long")

	// ErrPathTraversal indicates the raw or percent-decoded path contains
	// a ".." segment.
	ErrPathTraversal = errors.New("httpparse: path traversal")

	// ErrInvalidProtocol indicates an unsupported HTTP version token.
	ErrInvalidProtocol = errors.New("httpparse: invalid or unsupported protocol version")

	// ErrHeadersTooLarge indicates the header block exceeds 16 KiB without
	// a terminating blank line being found.
	ErrHeadersTooLarge = errors.New("httpparse: headers too large")

	// ErrInvalidHeader indicates a malformed header line: no colon, a bad
	// continuation, or an empty name.
	ErrInvalidHeader = errors.New("httpparse: invalid header")

	// ErrHeaderValidation wraps a headerstore.ValidationError surfaced
	// during HEADERS.
	ErrHeaderValidation = errors.New("httpparse: header validation failed")

	// ErrBodyTooLarge indicates Content-Length, or the running chunked
	// total, exceeds the configured maxBodySize.
	ErrBodyTooLarge = errors.New("httpparse: body too large")

	// ErrChunkedEncoding indicates a malformed chunk-size line, missing
	// chunk-terminating CRLF, or missing final CRLF.
	ErrChunkedEncoding = errors.New("httpparse: chunked encoding error")

	// ErrMultipartFraming indicates a malformed multipart boundary, part
	// header block, or missing terminating boundary.
	ErrMultipartFraming = errors.New("httpparse: multipart framing error")

	// ErrMultipartFieldTooLarge indicates an in-memory multipart field
	// part exceeded the 64 KiB cap.
	ErrMultipartFieldTooLarge = errors.New("httpparse: multipart field too large")

	// ErrParserLatched names the latched error state. Parse does not
	// return it: once a call has failed, every later call returns that
	// original error again until Reset.
	ErrParserLatched = errors.New("httpparse: parser latched in error state")
)
