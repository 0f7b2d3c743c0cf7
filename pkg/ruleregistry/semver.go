package ruleregistry

import (
	"fmt"
	"strconv"
	"strings"
)

// semver is a parsed strict MAJOR.MINOR.PATCH version. Pre-release and build
// metadata are not accepted; the registry only publishes plain versions.
type semver struct {
	major, minor, patch int
}

func parseVersion(s string) (semver, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("%w: %q is not MAJOR.MINOR.PATCH", ErrInvalidVersion, s)
	}

	nums := make([]int, 3)
	for i, part := range parts {
		if part == "" || (len(part) > 1 && part[0] == '0') {
			return semver{}, fmt.Errorf("%w: %q has a malformed component", ErrInvalidVersion, s)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return semver{}, fmt.Errorf("%w: %q has a non-numeric component", ErrInvalidVersion, s)
		}
		nums[i] = n
	}

	return semver{major: nums[0], minor: nums[1], patch: nums[2]}, nil
}

func (v semver) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

// compare returns -1, 0, or 1 as v is less than, equal to, or greater than o.
func (v semver) compare(o semver) int {
	if v.major != o.major {
		return compareInt(v.major, o.major)
	}
	if v.minor != o.minor {
		return compareInt(v.minor, o.minor)
	}
	return compareInt(v.patch, o.patch)
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// IncrementPatch bumps the patch component of a strict MAJOR.MINOR.PATCH
// version string: "1.2.3" becomes "1.2.4". It is used when a publish request
// does not supply an explicit version.
func IncrementPatch(version string) (string, error) {
	v, err := parseVersion(version)
	if err != nil {
		return "", err
	}
	v.patch++
	return v.String(), nil
}

// CompareVersions returns -1, 0, or 1 as a is less than, equal to, or greater
// than b. Both must be strict MAJOR.MINOR.PATCH strings.
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.compare(vb), nil
}

// ValidateVersion checks that s is a strict MAJOR.MINOR.PATCH string.
func ValidateVersion(s string) error {
	_, err := parseVersion(s)
	return err
}
