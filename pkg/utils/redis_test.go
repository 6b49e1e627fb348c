package utils

import "testing"

func TestLeaseScriptCompiles(t *testing.T) {
	// Compile-time smoke test: script should be initialized.
	if leaseReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}
