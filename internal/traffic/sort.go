package traffic

import (
	"fmt"
	"slices"
	"strings"
)

// SortKey names a column processes can be ordered by.
type SortKey string

const (
	SortByIn          SortKey = "in"
	SortByOut         SortKey = "out"
	SortByName        SortKey = "name"
	SortByPID         SortKey = "pid"
	SortByConnections SortKey = "conns"
)

// SortKeys returns every valid SortKey.
func SortKeys() []SortKey {
	return []SortKey{SortByIn, SortByOut, SortByName, SortByPID, SortByConnections}
}

// ParseSortKey parses a column name. The empty string is SortByIn.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortByIn, nil
	}
	k := SortKey(strings.ToLower(s))
	if !slices.Contains(SortKeys(), k) {
		return "", fmt.Errorf("unknown sort column %q", s)
	}
	return k, nil
}

// SortProcesses orders views in place by key, descending when desc is
// set. Ties fall back to the process key so the order is stable across
// snapshots.
func SortProcesses(views []ProcessView, key SortKey, desc bool) {
	slices.SortStableFunc(views, func(a, b ProcessView) int {
		c := compareBy(a, b, key)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		switch {
		case a.Key.Less(b.Key):
			return -1
		case b.Key.Less(a.Key):
			return 1
		}
		return 0
	})
}

func compareBy(a, b ProcessView, key SortKey) int {
	switch key {
	case SortByOut:
		return cmpFloat(a.Rate.OutPerSec, b.Rate.OutPerSec)
	case SortByName:
		return strings.Compare(strings.ToLower(a.Key.Name), strings.ToLower(b.Key.Name))
	case SortByPID:
		return cmpInt(a.Key.PID, b.Key.PID)
	case SortByConnections:
		return cmpInt(a.Connections, b.Connections)
	default:
		return cmpFloat(a.Rate.InPerSec, b.Rate.InPerSec)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Active returns the views whose inbound or outbound rate reaches
// minPerSec. Processes without a rate yet are excluded unless minPerSec
// is zero.
func Active(views []ProcessView, minPerSec float64) []ProcessView {
	if minPerSec <= 0 {
		return views
	}
	out := make([]ProcessView, 0, len(views))
	for _, v := range views {
		if v.HasRate && (v.Rate.InPerSec >= minPerSec || v.Rate.OutPerSec >= minPerSec) {
			out = append(out, v)
		}
	}
	return out
}
