// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// LineKind indicates whether a line was added, removed, or is context.
type LineKind int

const (
	Context LineKind = iota
	Addition
	Deletion
)

// Line is a single line in a diff. Content keeps the trailing newline
// when the source line had one, so a missing newline at end of file is
// a real difference.
type Line struct {
	Kind    LineKind
	Content string
	OldNum  int // 1-based, 0 for additions
	NewNum  int // 1-based, 0 for deletions
}

// Hunk is a continuous run of changes plus surrounding context.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine produces line diffs with a fixed amount of context.
type Engine struct {
	contextLines int
}

func NewEngine(contextLines int) *Engine {
	return &Engine{contextLines: contextLines}
}

// Hunks computes the unified-diff hunks between two byte contents.
// Returns nil when the contents are line-identical.
func (e *Engine) Hunks(oldContent, newContent []byte) []Hunk {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	ops := e.diffOps(oldLines, newLines)
	return e.groupHunks(ops)
}

// Render formats hunks in git's unified format, including the
// no-newline-at-end-of-file marker.
func Render(hunks []Hunk) string {
	var buf strings.Builder

	for _, hunk := range hunks {
		fmt.Fprintf(&buf, "@@ -%s +%s @@\n",
			formatRange(hunk.OldStart, hunk.OldLines),
			formatRange(hunk.NewStart, hunk.NewLines))

		for _, line := range hunk.Lines {
			switch line.Kind {
			case Addition:
				buf.WriteByte('+')
			case Deletion:
				buf.WriteByte('-')
			case Context:
				buf.WriteByte(' ')
			}
			content, hadNewline := strings.CutSuffix(line.Content, "\n")
			buf.WriteString(content)
			buf.WriteByte('\n')
			if !hadNewline {
				buf.WriteString("\\ No newline at end of file\n")
			}
		}
	}

	return buf.String()
}

func formatRange(start, count int) string {
	if count == 1 {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// splitLines splits content into lines keeping the trailing newline of
// each line, so "x" and "x\n" compare as different final lines.
func splitLines(content []byte) [][]byte {
	var lines [][]byte
	for len(content) > 0 {
		i := bytes.IndexByte(content, '\n')
		if i < 0 {
			lines = append(lines, content)
			break
		}
		lines = append(lines, content[:i+1])
		content = content[i+1:]
	}
	return lines
}

// op is one step of the line diff, annotated with the position of each
// cursor before the step. The cursors give hunk start numbers for runs
// that are empty on one side.
type op struct {
	kind      LineKind
	content   []byte
	oldNum    int // 1-based, 0 for additions
	newNum    int // 1-based, 0 for deletions
	oldBefore int // old lines consumed before this op
	newBefore int // new lines consumed before this op
}

// diffOps walks the LCS matrix and returns the full edit script in
// forward order.
func (e *Engine) diffOps(oldLines, newLines [][]byte) []op {
	lcs := computeLCS(oldLines, newLines)

	var rev []op
	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && bytes.Equal(oldLines[i-1], newLines[j-1]):
			rev = append(rev, op{kind: Context, content: oldLines[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			rev = append(rev, op{kind: Addition, content: newLines[j-1]})
			j--
		default:
			rev = append(rev, op{kind: Deletion, content: oldLines[i-1]})
			i--
		}
	}

	ops := make([]op, len(rev))
	oldPos, newPos := 0, 0
	for k := range rev {
		o := rev[len(rev)-1-k]
		o.oldBefore, o.newBefore = oldPos, newPos
		switch o.kind {
		case Context:
			oldPos++
			newPos++
			o.oldNum, o.newNum = oldPos, newPos
		case Deletion:
			oldPos++
			o.oldNum = oldPos
		case Addition:
			newPos++
			o.newNum = newPos
		}
		ops[k] = o
	}
	return ops
}

func computeLCS(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := 1; i <= len(oldLines); i++ {
		for j := 1; j <= len(newLines); j++ {
			if bytes.Equal(oldLines[i-1], newLines[j-1]) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// groupHunks clusters change ops into hunks, padding each with context
// lines and merging hunks whose context would overlap.
func (e *Engine) groupHunks(ops []op) []Hunk {
	var changes []int
	for k, o := range ops {
		if o.kind != Context {
			changes = append(changes, k)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	groupStart := changes[0]
	groupEnd := changes[0]
	for _, k := range changes[1:] {
		if k-groupEnd-1 > 2*e.contextLines {
			hunks = append(hunks, e.buildHunk(ops, groupStart, groupEnd))
			groupStart = k
		}
		groupEnd = k
	}
	hunks = append(hunks, e.buildHunk(ops, groupStart, groupEnd))

	return hunks
}

// buildHunk assembles one hunk from ops[firstChange..lastChange] plus
// up to contextLines of surrounding context.
func (e *Engine) buildHunk(ops []op, firstChange, lastChange int) Hunk {
	start := max(0, firstChange-e.contextLines)
	end := min(len(ops), lastChange+1+e.contextLines)

	hunk := Hunk{}
	for _, o := range ops[start:end] {
		hunk.Lines = append(hunk.Lines, Line{
			Kind:    o.kind,
			Content: string(o.content),
			OldNum:  o.oldNum,
			NewNum:  o.newNum,
		})
		if o.kind != Addition {
			hunk.OldLines++
		}
		if o.kind != Deletion {
			hunk.NewLines++
		}
	}

	first := ops[start]
	if hunk.OldLines > 0 {
		hunk.OldStart = first.oldBefore + 1
	} else {
		hunk.OldStart = first.oldBefore
	}
	if hunk.NewLines > 0 {
		hunk.NewStart = first.newBefore + 1
	} else {
		hunk.NewStart = first.newBefore
	}

	return hunk
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
