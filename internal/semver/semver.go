// Package semver handles the MAJOR.MINOR.PATCH version strings attached to
// design versions and templates. Numeric field-wise comparison only; no
// prerelease or build metadata.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

const Initial = "1.0.0"

// Bump classes.
const (
	Major = "major"
	Minor = "minor"
	Patch = "patch"
)

type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare returns -1, 0 or 1. Numeric per field, major first.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return cmp(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmp(a.Minor, b.Minor)
	}
	return cmp(a.Patch, b.Patch)
}

func cmp(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// ValidBump reports whether class names a bump segment.
func ValidBump(class string) bool {
	return class == Major || class == Minor || class == Patch
}

// Bump increments the requested segment and zeroes the lower-order ones.
func Bump(v Version, class string) (Version, error) {
	switch class {
	case Major:
		return Version{Major: v.Major + 1}, nil
	case Minor:
		return Version{Major: v.Major, Minor: v.Minor + 1}, nil
	case Patch:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return Version{}, fmt.Errorf("invalid bump class %q", class)
	}
}

// Max returns the semantically largest version among ss, skipping strings
// that do not parse. ok is false when nothing parsed.
func Max(ss []string) (Version, bool) {
	var best Version
	ok := false
	for _, s := range ss {
		v, err := Parse(s)
		if err != nil {
			continue
		}
		if !ok || Compare(v, best) > 0 {
			best = v
			ok = true
		}
	}
	return best, ok
}
