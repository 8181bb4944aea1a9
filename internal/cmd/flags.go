package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/netmon/internal/traffic"
	"github.com/spf13/pflag"
)

// sortFlag is a pflag.Value holding a sort column, rejected at parse time
// when unknown.
type sortFlag struct {
	key traffic.SortKey
}

var _ pflag.Value = (*sortFlag)(nil)

func (f *sortFlag) String() string { return string(f.key) }

func (f *sortFlag) Set(s string) error {
	key, err := traffic.ParseSortKey(s)
	if err != nil {
		return err
	}
	f.key = key
	return nil
}

func (f *sortFlag) Type() string { return "column" }

// choiceFlag is a pflag.Value restricted to a fixed set of strings.
type choiceFlag struct {
	value   string
	choices []string
}

var _ pflag.Value = (*choiceFlag)(nil)

func newChoiceFlag(def string, choices ...string) *choiceFlag {
	return &choiceFlag{value: def, choices: choices}
}

func (f *choiceFlag) String() string { return f.value }

func (f *choiceFlag) Set(s string) error {
	if !slices.Contains(f.choices, s) {
		return fmt.Errorf("must be one of: %s", strings.Join(f.choices, ", "))
	}
	f.value = s
	return nil
}

func (f *choiceFlag) Type() string { return "string" }
