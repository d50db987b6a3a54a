package rescache

import (
	"fmt"
	"strings"
)

// Policy decides when unreferenced items are asked to leave the cache.
type Policy uint8

const (
	// Immediate requests eviction as soon as an item's
	// reference count drops to zero.
	Immediate Policy = iota
	// UserDefined keeps unreferenced items cached until
	// [Cache.FreeLeastRecentlyUsed] (or an [Admitter]) removes them.
	UserDefined
)

func (p Policy) String() string {
	switch p {
	case Immediate:
		return "immediate"
	case UserDefined:
		return "user-defined"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

func (p Policy) valid() bool { return p <= UserDefined }

// ParsePolicy accepts the names returned by [Policy.String].
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "immediate":
		return Immediate, nil
	case "user-defined", "userdefined", "user_defined":
		return UserDefined, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
}

// MarshalText implements [encoding.TextMarshaler].
func (p Policy) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolicy, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (p *Policy) UnmarshalText(text []byte) error {
	policy, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}
