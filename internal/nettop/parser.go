package nettop

import (
	"strconv"
	"strings"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

// Kind classifies a parsed line.
type Kind int

const (
	// KindIgnorable is a line that carries nothing usable.
	KindIgnorable Kind = iota
	// KindBoundary is a header row separating two sampling windows.
	KindBoundary
	// KindProcess is a per-process counter row.
	KindProcess
	// KindConnection is a per-connection row belonging to the preceding process.
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindBoundary:
		return "boundary"
	case KindProcess:
		return "process"
	case KindConnection:
		return "connection"
	default:
		return "ignorable"
	}
}

// Reasons attached to ignorable lines.
const (
	ReasonBlank            = "blank"
	ReasonShortRow         = "short row"
	ReasonMissingIdentity  = "missing identity"
	ReasonBadIdentity      = "bad identity"
	ReasonNonNumericCounts = "non-numeric counter"
)

// Record is one process's cumulative counters within a window.
type Record struct {
	Key      traffic.ProcessKey
	Counters traffic.CounterSample
}

// Result is the outcome of parsing one line.
type Result struct {
	Kind   Kind
	Record Record // set for KindProcess
	Reason string // set for KindIgnorable
	Line   string
}

// Warning returns the ParseWarning for an ignorable result, nil otherwise.
// Blank lines are expected and produce no warning.
func (r Result) Warning() error {
	if r.Kind != KindIgnorable || r.Reason == ReasonBlank {
		return nil
	}
	return errors.NewParseWarning(r.Line, r.Reason)
}

// Parser turns lines into Results. It remembers the counter column order
// declared by the most recent header, so it is not safe for concurrent use.
type Parser struct {
	schema Schema
	inIdx  int
	outIdx int
}

// NewParser creates a parser using the schema's fallback column indices.
func NewParser(schema Schema) *Parser {
	return &Parser{
		schema: schema,
		inIdx:  schema.BytesInIndex,
		outIdx: schema.BytesOutIndex,
	}
}

// Columns returns the counter column indices currently in effect.
func (p *Parser) Columns() (in, out int) {
	return p.inIdx, p.outIdx
}

// Parse classifies a single line. It never fails; malformed input yields
// KindIgnorable with a reason.
func (p *Parser) Parse(line string) Result {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{Kind: KindIgnorable, Reason: ReasonBlank}
	}

	if p.schema.IsHeader(line) {
		if strings.HasPrefix(line, p.schema.HeaderPrefix) {
			if in, out, ok := p.schema.columns(line); ok {
				p.inIdx, p.outIdx = in, out
			}
		}
		return Result{Kind: KindBoundary, Line: line}
	}

	fields := strings.Split(line, ",")
	if len(fields) <= p.schema.IdentityIndex {
		return ignorable(line, ReasonShortRow)
	}

	identity := strings.TrimSpace(fields[p.schema.IdentityIndex])
	if identity == "" {
		return ignorable(line, ReasonMissingIdentity)
	}
	if p.schema.IsConnection(identity) {
		return Result{Kind: KindConnection, Line: line}
	}

	if len(fields) <= max(p.inIdx, p.outIdx) {
		return ignorable(line, ReasonShortRow)
	}

	key, err := traffic.ParseProcessKey(identity)
	if err != nil {
		return ignorable(line, ReasonBadIdentity)
	}

	in, errIn := strconv.ParseUint(strings.TrimSpace(fields[p.inIdx]), 10, 64)
	out, errOut := strconv.ParseUint(strings.TrimSpace(fields[p.outIdx]), 10, 64)
	if errIn != nil || errOut != nil {
		return ignorable(line, ReasonNonNumericCounts)
	}

	return Result{
		Kind: KindProcess,
		Record: Record{
			Key:      key,
			Counters: traffic.CounterSample{BytesIn: in, BytesOut: out},
		},
		Line: line,
	}
}

func ignorable(line, reason string) Result {
	return Result{Kind: KindIgnorable, Reason: reason, Line: line}
}
