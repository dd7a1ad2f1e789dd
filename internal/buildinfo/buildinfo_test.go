package buildinfo_test

import (
	"testing"

	"triage/internal/buildinfo"
)

func TestVersionIsSet(t *testing.T) {
	t.Parallel()

	v := buildinfo.String()
	if v == "" {
		t.Fatal("version.String() must not be empty")
	}
}
