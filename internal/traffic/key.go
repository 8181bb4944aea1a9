package traffic

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessKey identifies a traffic-generating process. The same pid under a
// different name is a different key; pid reuse under the same name is
// detected only through counter resets.
type ProcessKey struct {
	Name string
	PID  int
}

// String returns the "name.pid" form used by the sampling tool.
func (k ProcessKey) String() string {
	return k.Name + "." + strconv.Itoa(k.PID)
}

// MarshalText implements encoding.TextMarshaler.
func (k ProcessKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ProcessKey) UnmarshalText(text []byte) error {
	parsed, err := ParseProcessKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseProcessKey splits an identity of the form "name.pid" on its last
// dot. The suffix must be all ASCII digits and the name must be non-empty;
// names may themselves contain dots ("com.apple.WebKit.1234").
func ParseProcessKey(s string) (ProcessKey, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return ProcessKey{}, fmt.Errorf("identity %q is not of the form name.pid", s)
	}

	name, suffix := s[:dot], s[dot+1:]
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return ProcessKey{}, fmt.Errorf("identity %q has non-numeric pid %q", s, suffix)
		}
	}

	pid, err := strconv.Atoi(suffix)
	if err != nil {
		return ProcessKey{}, fmt.Errorf("identity %q has out-of-range pid: %w", s, err)
	}
	return ProcessKey{Name: name, PID: pid}, nil
}

// Less orders keys by name, then pid. Consumers use it for stable output.
func (k ProcessKey) Less(other ProcessKey) bool {
	if k.Name != other.Name {
		return k.Name < other.Name
	}
	return k.PID < other.PID
}
