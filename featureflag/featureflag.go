package featureflag

import (
	"sort"
	"strings"
)

// FeatureFlag is a set of enabled flags.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags named in the given list. Names are trimmed and
// upper-cased; empty names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether the flag is enabled.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when the flag is enabled.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs do when the flag is not enabled.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// List returns the enabled flags in alphabetical order.
func (f FeatureFlag) List() []string {
	list := make([]string, 0, len(f))
	for flag := range f {
		list = append(list, string(flag))
	}
	sort.Strings(list)
	return list
}
