//go:build linux

package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Magic numbers from statfs(2).
const (
	nfsSuperMagic   = 0x6969
	smbSuperMagic   = 0x517b
	cifsMagicNumber = 0xff534d42
	smb2MagicNumber = 0xfe534d42
	fuseSuperMagic  = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	target := path
	// The target may not exist yet; classify the nearest existing ancestor.
	for {
		if err := unix.Statfs(target, &st); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return FSTypeUnknown
		}
		parent := filepath.Dir(target)
		if parent == target {
			return FSTypeUnknown
		}
		target = parent
	}

	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagicNumber, smb2MagicNumber:
		return FSTypeSMB
	case fuseSuperMagic:
		if isSSHFS(target) {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

// isSSHFS checks /proc/self/mounts for an sshfs mount covering path.
func isSSHFS(path string) bool {
	data, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return false
	}
	best, bestType := "", ""
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mnt, typ := fields[1], fields[2]
		if (path == mnt || strings.HasPrefix(path, strings.TrimSuffix(mnt, "/")+"/")) && len(mnt) > len(best) {
			best, bestType = mnt, typ
		}
	}
	return bestType == "fuse.sshfs"
}
