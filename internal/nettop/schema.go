package nettop

import (
	"strings"
	"unicode"
)

// Schema describes the sampling tool's output layout.
type Schema struct {
	// HeaderPrefix marks the header row. Headers are window boundaries and
	// also declare the counter column order.
	HeaderPrefix string
	// AltHeaderPrefix marks a second header form. It is a boundary only.
	AltHeaderPrefix string
	// IdentityIndex is the column holding "name.pid".
	IdentityIndex int
	// BytesInColumn and BytesOutColumn are the header names of the counters.
	BytesInColumn  string
	BytesOutColumn string
	// BytesInIndex and BytesOutIndex are used until a header is seen.
	BytesInIndex  int
	BytesOutIndex int
	// ConnectionMarkers identify per-connection rows. Markers made of
	// letters and digits match as a leading word ("tcp4 ..."); any other
	// marker matches anywhere in the identity ("<->").
	ConnectionMarkers []string
}

// DefaultSchema returns the layout of nettop -x on current macOS releases.
func DefaultSchema() Schema {
	return Schema{
		HeaderPrefix:      "time,",
		AltHeaderPrefix:   ",interface,state",
		IdentityIndex:     1,
		BytesInColumn:     "bytes_in",
		BytesOutColumn:    "bytes_out",
		BytesInIndex:      4,
		BytesOutIndex:     5,
		ConnectionMarkers: []string{"<->", "tcp4", "tcp6", "udp4", "udp6", "tcp", "udp"},
	}
}

// IsHeader reports whether line is a header row of either form.
func (s Schema) IsHeader(line string) bool {
	if s.HeaderPrefix != "" && strings.HasPrefix(line, s.HeaderPrefix) {
		return true
	}
	return s.AltHeaderPrefix != "" && strings.HasPrefix(line, s.AltHeaderPrefix)
}

// IsConnection reports whether identity names a connection rather than a
// process.
func (s Schema) IsConnection(identity string) bool {
	for _, m := range s.ConnectionMarkers {
		if m == "" {
			continue
		}
		if !isWord(m) {
			if strings.Contains(identity, m) {
				return true
			}
			continue
		}
		// "tcp4 10.0.0.1:5000" is a connection, "tcpdump.311" is a process.
		if rest, ok := strings.CutPrefix(identity, m); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
			return true
		}
	}
	return false
}

// columns locates the counter columns in a primary header row.
func (s Schema) columns(header string) (in, out int, ok bool) {
	in, out = -1, -1
	for i, name := range strings.Split(header, ",") {
		name = strings.TrimSpace(name)
		switch {
		case strings.EqualFold(name, s.BytesInColumn):
			in = i
		case strings.EqualFold(name, s.BytesOutColumn):
			out = i
		}
	}
	return in, out, in >= 0 && out >= 0
}

func isWord(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
