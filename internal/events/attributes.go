package events

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/lavanet/lava-indexer/pkg/rpc"
)

// providerAddrRe matches a valid provider/consumer account address.
var providerAddrRe = regexp.MustCompile(`^lava@[a-z0-9]{39}$`)

// Attrs is the flattened attribute map of a single event.
type Attrs map[string]string

// Flatten collapses an event's attribute list into a map. Keys that
// carry a numeric ordinal suffix ("provider.1", "chainID.2") are
// folded onto their base key; within a multi-instance event the last
// occurrence wins.
func Flatten(ev rpc.Event) Attrs {
	attrs := make(Attrs, len(ev.Attributes))
	for _, a := range ev.Attributes {
		attrs[flattenKey(a.Key)] = a.Value
	}
	return attrs
}

func flattenKey(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return key
	}
	if _, err := strconv.Atoi(key[idx+1:]); err != nil {
		return key
	}
	return key[:idx]
}

// Fulltext renders the attributes as JSON for the generic event row.
func (a Attrs) Fulltext() *string {
	b, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// Str returns the attribute as-is, nil when absent.
func (a Attrs) Str(key string) *string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	return &v
}

// Int parses the attribute as a base-10 integer. Absent attributes
// yield nil; malformed values yield zero with a warning, so one bad
// field never drops the whole event.
func (a Attrs) Int(key string) *int64 {
	v, ok := a[key]
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		slog.Warn("event attribute is not an integer", "key", key, "value", v)
		zero := int64(0)
		return &zero
	}
	return &n
}

// Float parses the attribute as a float. Same failure policy as Int.
func (a Attrs) Float(key string) *float64 {
	v, ok := a[key]
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		slog.Warn("event attribute is not a float", "key", key, "value", v)
		zero := 0.0
		return &zero
	}
	return &f
}

// Ulava parses a coin amount attribute ("5000ulava" or bare "5000")
// into its integer ulava value. Same failure policy as Int.
func (a Attrs) Ulava(key string) *int64 {
	v, ok := a[key]
	if !ok {
		return nil
	}
	s := strings.TrimSpace(v)
	s = strings.TrimSuffix(s, "ulava")
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		slog.Warn("event attribute is not a coin amount", "key", key, "value", v)
		zero := int64(0)
		return &zero
	}
	return &n
}

// Provider returns the attribute as a validated account address. The
// address identifies the row, so unlike numeric fields a bad value is
// a hard failure and the caller drops the event.
func (a Attrs) Provider(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := a[key]
		if !ok {
			continue
		}
		addr := strings.TrimSpace(v)
		if providerAddrRe.MatchString(addr) {
			return addr, true
		}
		slog.Warn("event attribute is not a valid account address", "key", key, "value", v)
		return "", false
	}
	return "", false
}

// ValidAddress reports whether s is a well-formed account address.
func ValidAddress(s string) bool {
	return providerAddrRe.MatchString(s)
}
