package cmd

import (
	"testing"

	"github.com/Iron-Ham/netmon/internal/traffic"
)

func TestSortFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    traffic.SortKey
		wantErr bool
	}{
		{in: "out", want: traffic.SortByOut},
		{in: "conns", want: traffic.SortByConnections},
		{in: "cpu", want: traffic.SortByIn, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f := sortFlag{key: traffic.SortByIn}
			err := f.Set(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if f.key != tt.want {
				t.Errorf("key = %s, want %s", f.key, tt.want)
			}
			if f.Type() != "column" {
				t.Errorf("Type() = %q", f.Type())
			}
		})
	}
}

func TestChoiceFlag(t *testing.T) {
	f := newChoiceFlag(formatTable, formatTable, formatJSON, formatYAML)
	if f.String() != formatTable {
		t.Errorf("default = %q, want %q", f.String(), formatTable)
	}
	if err := f.Set(formatYAML); err != nil || f.String() != formatYAML {
		t.Errorf("Set(yaml) = %v, value %q", err, f.String())
	}
	if err := f.Set("xml"); err == nil {
		t.Error("Set(xml) succeeded")
	}
	if f.String() != formatYAML {
		t.Errorf("rejected value changed the flag to %q", f.String())
	}
}
