// internal/track/types.go
package track

// FileMode captures the two permission facts a diff header cares
// about. Symlink wins over executable in the git mode tag.
type FileMode struct {
	Executable bool
	Symlink    bool
}

// GitMode returns the six-digit octal tag used in diff mode lines.
func (m FileMode) GitMode() string {
	switch {
	case m.Symlink:
		return "120000"
	case m.Executable:
		return "100755"
	default:
		return "100644"
	}
}

func (m FileMode) String() string {
	return m.GitMode()
}

// FileChange describes a mutation the caller is about to apply to a
// path. Declared content is informational only; diffs are always
// computed from disk state, never from the change itself.
type FileChange interface {
	isFileChange()
}

// Add announces a file about to be created.
type Add struct {
	Content []byte
}

// Update announces a file about to be modified in place, or moved when
// MovePath is set.
type Update struct {
	MovePath string
}

// Delete announces a file about to be removed.
type Delete struct {
	Content []byte
}

func (Add) isFileChange()    {}
func (Update) isFileChange() {}
func (Delete) isFileChange() {}

// PathChange pairs a path with the change about to happen to it.
// Batches are ordered slices because rename order within one batch is
// observable.
type PathChange struct {
	Path   string
	Change FileChange
}

// BaselineFileInfo is the snapshot of a file at first touch. Written
// exactly once per identity and never mutated afterward.
type BaselineFileInfo struct {
	Path    string
	Content []byte
	Mode    FileMode
	OID     string
}
