package doctree

import "sort"

// ChapterIndex is an ordered, read-only list of chapters sorted by StartLine.
type ChapterIndex []Chapter

// Containing returns the index of the chapter that contains line, that is the
// chapter with the greatest StartLine <= line. It returns false when line
// precedes the first chapter or the index is empty.
func (ci ChapterIndex) Containing(line int) (int, bool) {
	// First chapter starting after line; the one before it contains line.
	i := sort.Search(len(ci), func(i int) bool { return ci[i].StartLine > line })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// Next returns the first chapter starting after line.
func (ci ChapterIndex) Next(line int) (Chapter, bool) {
	i := sort.Search(len(ci), func(i int) bool { return ci[i].StartLine > line })
	if i >= len(ci) {
		return Chapter{}, false
	}
	return ci[i], true
}

// Clone returns a copy that callers may keep after the index is replaced.
func (ci ChapterIndex) Clone() ChapterIndex {
	if ci == nil {
		return nil
	}
	out := make(ChapterIndex, len(ci))
	copy(out, ci)
	return out
}
