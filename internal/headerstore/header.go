// Package headerstore implements a case-insensitive, multi-valued HTTP
// header collection along with the validation invariants a request's
// headers must satisfy before a request can be considered well-formed.
package headerstore

import (
	"strconv"
	"strings"
)

// Store is a case-insensitive multimap of header name to an ordered list
// of values. Names are stored lower-cased internally; Add preserves
// insertion order per name, matching how repeated headers (e.g. multiple
// Set-Cookie-style fields) must be reconstructed on the wire.
//
// Design rationale (grounded on http11.Header): linear growth via a plain
// map is simpler than http11's inline fixed-array storage, which doesn't
// support the multi-valued semantics §4.1 requires (a header map keyed on
// a single value can't carry duplicate field names), but the case folding
// and validate-then-latch discipline is the same.
type Store struct {
	values map[string][]string
	// order preserves first-seen header name order for deterministic
	// serialization (cosmetic, but keeps wire output stable across runs).
	order []string
	// Cookies holds the name->value pairs parsed out of the Cookie header,
	// split on ';' as §4.2 HEADERS specifies.
	Cookies map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{values: make(map[string][]string)}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Add appends a value under name, preserving any existing values.
// If name is "Cookie" (case-insensitive), the value is additionally split
// on ';' into name=value pairs and merged into Cookies.
func (s *Store) Add(name, value string) {
	k := key(name)
	if _, ok := s.values[k]; !ok {
		s.order = append(s.order, k)
	}
	s.values[k] = append(s.values[k], value)

	if k == "cookie" {
		s.addCookiePairs(value)
	}
}

func (s *Store) addCookiePairs(value string) {
	if s.Cookies == nil {
		s.Cookies = make(map[string]string)
	}
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			s.Cookies[pair] = ""
			continue
		}
		s.Cookies[pair[:eq]] = pair[eq+1:]
	}
}

// First returns the first value stored under name, and whether it exists.
func (s *Store) First(name string) (string, bool) {
	vs, ok := s.values[key(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// All returns every value stored under name, in insertion order.
// The returned slice must not be mutated by the caller.
func (s *Store) All(name string) []string {
	return s.values[key(name)]
}

// Has reports whether any value is stored under name.
func (s *Store) Has(name string) bool {
	_, ok := s.values[key(name)]
	return ok
}

// Remove deletes every value stored under name.
func (s *Store) Remove(name string) {
	k := key(name)
	if _, ok := s.values[k]; !ok {
		return
	}
	delete(s.values, k)
	for i, n := range s.order {
		if n == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Set replaces any existing values under name with a single value.
func (s *Store) Set(name, value string) {
	s.Remove(name)
	s.Add(name, value)
}

// VisitAll calls visitor once per (name, value) pair in header insertion
// order, then per value insertion order within a name. Iteration stops
// early if visitor returns false.
func (s *Store) VisitAll(visitor func(name, value string) bool) {
	for _, k := range s.order {
		for _, v := range s.values[k] {
			if !visitor(k, v) {
				return
			}
		}
	}
}

// Names returns the set of distinct header names present, lower-cased.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ValidationError is returned by Validate to describe the first invariant
// violation encountered, in the fixed order §4.1 specifies.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validate runs the §4.1 rules in order and returns a *ValidationError
// describing the first failure, or nil if the header set is well-formed.
// As a side effect, rule 3 may delete the Content-Length header from the
// store (chunked wins over a conflicting Content-Length).
func (s *Store) Validate() error {
	host, ok := s.First("host")
	if !ok || strings.TrimSpace(host) == "" {
		return &ValidationError{Reason: "missing host"}
	}

	clValues := s.All("content-length")
	if len(clValues) > 1 {
		first := strings.TrimSpace(clValues[0])
		for _, v := range clValues[1:] {
			if strings.TrimSpace(v) != first {
				return &ValidationError{Reason: "conflicting content-length"}
			}
		}
	}

	te, hasTE := s.First("transfer-encoding")
	_, hasCL := s.First("content-length")
	if hasCL && hasTE && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		s.Remove("content-length")
		hasCL = false
	}

	if hasTE {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return &ValidationError{Reason: "unsupported transfer-encoding"}
		}
	}

	if hasCL {
		clStr, _ := s.First("content-length")
		if _, err := strconv.ParseInt(strings.TrimSpace(clStr), 10, 64); err != nil {
			return &ValidationError{Reason: "invalid content-length"}
		}
	}

	return nil
}

// ContentLength returns the parsed Content-Length value and whether it was
// present (after Validate has resolved any chunked/Content-Length
// conflict). Returns (0, false) if absent.
func (s *Store) ContentLength() (int64, bool) {
	v, ok := s.First("content-length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsChunked reports whether Transfer-Encoding: chunked is present.
func (s *Store) IsChunked() bool {
	v, ok := s.First("transfer-encoding")
	return ok && strings.EqualFold(strings.TrimSpace(v), "chunked")
}

// Reset clears the store for reuse.
func (s *Store) Reset() {
	for k := range s.values {
		delete(s.values, k)
	}
	s.order = s.order[:0]
	s.Cookies = nil
}
