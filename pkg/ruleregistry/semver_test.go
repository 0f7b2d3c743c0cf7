package ruleregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementPatch(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"1.2.3", "1.2.4"},
		{"0.0.9", "0.0.10"},
		{"0.0.0", "0.0.1"},
		{"10.20.99", "10.20.100"},
	}

	for _, tt := range tests {
		got, err := IncrementPatch(tt.version)
		require.NoError(t, err, tt.version)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateVersion(t *testing.T) {
	valid := []string{"0.0.0", "1.0.0", "1.2.3", "10.200.3000"}
	for _, v := range valid {
		assert.NoError(t, ValidateVersion(v), v)
	}

	invalid := []string{
		"",
		"1",
		"1.0",
		"1.0.0.0",
		"v1.0.0",
		"1.0.0-beta",
		"1.0.0+build",
		"01.0.0",
		"1.00.0",
		"1.0.-1",
		"a.b.c",
		"1..0",
		"latest",
	}
	for _, v := range invalid {
		err := ValidateVersion(v)
		assert.ErrorIs(t, err, ErrInvalidVersion, "version %q", v)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.0.1", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.10.0", "1.9.0", 1},
		{"0.0.10", "0.0.9", 1},
	}

	for _, tt := range tests {
		got, err := CompareVersions(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}

	_, err := CompareVersions("1.0", "1.0.0")
	assert.ErrorIs(t, err, ErrInvalidVersion)
}
