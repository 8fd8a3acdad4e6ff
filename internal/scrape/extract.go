package scrape

import (
	"regexp"
	"strings"

	appLog "github.com/dalbodeule/octofree/internal/log"
)

// Classification tags which announcement section the descriptors came from.
type Classification string

const (
	// ClassNext: descriptors came from a "Next Session(s):" block and
	// describe upcoming sessions.
	ClassNext Classification = "next"
	// ClassLast: descriptors came from a "Last Session:" block and
	// describe an already-finished session.
	ClassLast Classification = "last"
	// ClassNone: no recognizable announcement was found.
	ClassNone Classification = ""
)

var (
	nextHeadingRe = regexp.MustCompile(`(?i)Next\s+Sessions?:`)
	lastHeadingRe = regexp.MustCompile(`(?i)Last\s+Session:`)

	// headingTagRe bounds an announcement block at the next heading.
	headingTagRe = regexp.MustCompile(`(?i)<h\d[^>]*>`)
	// lastBlockEndRe bounds a "Last Session:" block at the next heading
	// or at the phrase introducing the next scheduled session, whichever
	// comes first.
	lastBlockEndRe = regexp.MustCompile(`(?i)<h\d[^>]*>|Next Power Tower`)

	brTagRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)

	// descriptorRe is the core session grammar:
	// digits[am|pm]-digits[am|pm], word digits[ordinal] word
	descriptorRe = regexp.MustCompile(`(?i)\d+(?:am|pm)?-\d+(?:am|pm)?,\s*\w+\s*\d+(?:st|nd|rd|th)?\s*\w+`)

	// fragmentSplitRe splits a block into candidate fragments. The
	// publisher sometimes runs several sessions together without a line
	// break, separated only by words like "Next" or "Power Tower".
	fragmentSplitRe = regexp.MustCompile(`\n|Next|Power Tower`)

	// fallbackRe is the loose single-line pattern used when no heading
	// block is present.
	fallbackRe = regexp.MustCompile(`(?i)Next(?:\s+\w+)*\s+Sessions?:\s*([^<\n]+)`)
)

// Extract recovers session descriptors from raw page markup.
//
// Matching is an ordered list of independent rules; the first rule that
// applies wins and the rest are never tried:
//
//  1. "Next Session(s):" heading block
//  2. "Last Session:" heading block
//  3. loose single-line "Next ... Session(s):" fallback
//
// Extraction is total: unexpected markup degrades to (ClassNone, nil)
// rather than an error, and duplicates are removed with set semantics.
func Extract(markup string) (Classification, []string) {
	for _, rule := range extractRules {
		if class, found, ok := rule(markup); ok {
			descriptors := dedupe(found)
			appLog.Info("extracted sessions", "count", len(descriptors), "classification", string(class))
			return class, descriptors
		}
	}

	appLog.Info("no session announcement found in markup")
	return ClassNone, nil
}

// extractRule attempts one extraction strategy. ok reports whether the
// rule applied at all; a rule that applies but finds no descriptors still
// claims the input.
type extractRule func(markup string) (Classification, []string, bool)

var extractRules = []extractRule{
	extractNextBlock,
	extractLastBlock,
	extractFallbackLine,
}

// extractNextBlock handles the "Next Session(s):" heading form, possibly
// listing several sessions separated by <br> tags or separator words.
func extractNextBlock(markup string) (Classification, []string, bool) {
	loc := nextHeadingRe.FindStringIndex(markup)
	if loc == nil {
		return ClassNone, nil, false
	}

	block := isolateBlock(markup[loc[1]:], headingTagRe)

	var found []string
	for _, fragment := range fragmentSplitRe.Split(block, -1) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		found = append(found, descriptorRe.FindAllString(fragment, -1)...)
	}

	return ClassNext, found, true
}

// extractLastBlock handles the "Last Session:" form shown between events.
func extractLastBlock(markup string) (Classification, []string, bool) {
	loc := lastHeadingRe.FindStringIndex(markup)
	if loc == nil {
		return ClassNone, nil, false
	}

	block := isolateBlock(markup[loc[1]:], lastBlockEndRe)
	found := descriptorRe.FindAllString(block, -1)

	return ClassLast, found, true
}

// extractFallbackLine handles the legacy single-line announcement where
// the descriptor follows the heading phrase on the same line.
func extractFallbackLine(markup string) (Classification, []string, bool) {
	m := fallbackRe.FindStringSubmatch(markup)
	if m == nil {
		return ClassNone, nil, false
	}

	line := htmlTagRe.ReplaceAllString(strings.TrimSpace(m[1]), "")
	found := descriptorRe.FindAllString(line, -1)

	return ClassNext, found, true
}

// isolateBlock cuts the announcement text between the heading and the
// next boundary match, normalizes <br> tags to newlines, and strips the
// remaining markup.
func isolateBlock(rest string, boundary *regexp.Regexp) string {
	if end := boundary.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	rest = brTagRe.ReplaceAllString(rest, "\n")
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(rest, ""))
}

// dedupe removes duplicate descriptors, keeping first-seen order. Order
// is not relied upon downstream; keeping it makes logs deterministic.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
