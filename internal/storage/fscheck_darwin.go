//go:build darwin

package storage

import (
	"fmt"
	"strings"
	"syscall"
)

func detectFilesystemType(path string) (string, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	return strings.ToLower(fsTypeName(stat.Fstypename[:])), nil
}

// fsTypeName reads the NUL-terminated f_fstypename field.
func fsTypeName(buf []int8) string {
	var b strings.Builder
	for _, c := range buf {
		if c == 0 {
			break
		}
		b.WriteByte(byte(c))
	}
	return b.String()
}
