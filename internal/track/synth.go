// internal/track/synth.go
package track

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"turntrack/internal/blob"
	"turntrack/internal/diff"
	"turntrack/internal/errs"
)

// UnifiedDiff re-reads every tracked path and returns the aggregate
// git-style diff of live state against the turn baselines, or "" when
// nothing changed. The result is a pure function of the baselines and
// the filesystem, so repeated calls without intervening mutations are
// identical. Any unreadable file fails the whole call; a partial
// aggregate is never returned.
func (t *Tracker) UnifiedDiff() (string, error) {
	if len(t.baselines) == 0 {
		return "", nil
	}

	var buf strings.Builder
	fragments := 0
	for _, id := range t.Identities() {
		fragment, err := t.fileDiff(id)
		if err != nil {
			return "", fmt.Errorf("computing diff: %w", err)
		}
		if fragment != "" {
			buf.WriteString(fragment)
			fragments++
		}
	}

	t.logger.Debug("diff synthesized",
		zap.Int("tracked", len(t.baselines)),
		zap.Int("fragments", fragments))
	return buf.String(), nil
}

// fileDiff emits the diff fragment for one identity, or "" when its
// live state still matches the baseline.
func (t *Tracker) fileDiff(id uuid.UUID) (string, error) {
	base, ok := t.baselines[id]
	if !ok {
		return "", errs.NotFound(fmt.Sprintf("identity %s", id))
	}
	current, ok := t.currentPath[id]
	if !ok {
		return "", errs.NotFound(fmt.Sprintf("identity %s", id))
	}

	live, err := readState(current)
	if err != nil {
		return "", err
	}

	// Nothing to report: untouched, or never materialized at all.
	if bytes.Equal(base.Content, live.content) && base.Path == current && base.Mode == live.mode {
		return "", nil
	}
	if base.OID == blob.ZeroOID && !live.exists {
		return "", nil
	}

	isAdd := base.OID == blob.ZeroOID && live.oid != blob.ZeroOID
	isDelete := base.OID != blob.ZeroOID && live.oid == blob.ZeroOID

	oldDisplay := t.roots.Display(base.Path)
	newDisplay := t.roots.Display(current)

	var buf strings.Builder
	fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", oldDisplay, newDisplay)

	switch {
	case isAdd:
		fmt.Fprintf(&buf, "new file mode %s\n", live.mode)
	case isDelete:
		fmt.Fprintf(&buf, "deleted file mode %s\n", base.Mode)
	case base.Mode != live.mode:
		fmt.Fprintf(&buf, "old mode %s\n", base.Mode)
		fmt.Fprintf(&buf, "new mode %s\n", live.mode)
	}

	fmt.Fprintf(&buf, "index %s..%s\n", blob.Abbrev(base.OID), blob.Abbrev(live.oid))

	if bytes.Equal(base.Content, live.content) {
		// Pure rename or mode change, no content section.
		return buf.String(), nil
	}

	left := "/dev/null"
	if !isAdd {
		left = "a/" + oldDisplay
	}
	right := "/dev/null"
	if !isDelete {
		right = "b/" + newDisplay
	}

	if !utf8.Valid(base.Content) || !utf8.Valid(live.content) {
		fmt.Fprintf(&buf, "--- %s\n+++ %s\n", left, right)
		buf.WriteString("Binary files differ\n")
		return buf.String(), nil
	}

	hunks := t.engine.Hunks(base.Content, live.content)
	if len(hunks) > 0 {
		fmt.Fprintf(&buf, "--- %s\n+++ %s\n", left, right)
		buf.WriteString(diff.Render(hunks))
	}
	return buf.String(), nil
}
