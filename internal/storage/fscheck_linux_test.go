//go:build linux

package storage

import "testing"

func TestDetectFilesystemTypeLinux(t *testing.T) {
	t.Parallel()

	fsType, err := detectFilesystemType(t.TempDir())
	if err != nil {
		t.Fatalf("detectFilesystemType: %v", err)
	}
	if fsType == "" {
		t.Fatal("expected a filesystem name or magic")
	}
}
