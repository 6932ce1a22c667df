// internal/track/fs.go
package track

import (
	"os"

	"turntrack/internal/blob"
	"turntrack/internal/errs"
)

// liveState is a file's on-disk state at one point in time. A missing
// file is a legitimate state (absent sentinel), an unreadable one is
// not.
type liveState struct {
	exists  bool
	content []byte
	mode    FileMode
	oid     string
}

func absentState() liveState {
	return liveState{oid: blob.ZeroOID}
}

// readState reads a path's content, mode and object ID. Symlinks are
// not followed; their content is the link target. Directories count as
// absent since only files are tracked.
func readState(path string) (liveState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return absentState(), nil
		}
		return liveState{}, errs.Unreadable(path, err)
	}

	var mode FileMode
	var content []byte
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		mode.Symlink = true
		target, err := os.Readlink(path)
		if err != nil {
			return liveState{}, errs.Unreadable(path, err)
		}
		content = []byte(target)
	case info.IsDir():
		return absentState(), nil
	default:
		mode.Executable = info.Mode()&0o111 != 0
		content, err = os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Removed between the lstat and the read.
				return absentState(), nil
			}
			return liveState{}, errs.Unreadable(path, err)
		}
	}

	return liveState{
		exists:  true,
		content: content,
		mode:    mode,
		oid:     blob.OID(content),
	}, nil
}
