// Package assistant – knowledge-base delegate.
//
// KnowledgeBase is a small, deterministic, concurrency-safe retrieval delegate
// built from Markdown paragraphs. The index is immutable after construction
// and safe for concurrent use; scoring is Jaccard similarity between the
// query token set and each paragraph's token set.
package assistant

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// KnowledgeBase answers questions from an indexed Markdown document.
type KnowledgeBase struct {
	docs []kbDoc

	// Threshold is the minimum similarity for an answer; below it the
	// delegate declines with DeclineReply. Zero means the default 0.2.
	Threshold float64
}

type kbDoc struct {
	text   string
	tokens map[string]struct{}
}

var kbTokenRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// stop-words dropped during tokenization; keeps paragraphs from matching on
// glue words alone.
var kbStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"how": {}, "what": {}, "which": {}, "do": {}, "does": {}, "can": {}, "i": {}, "you": {},
}

const kbMinParagraphRunes = 24

// NewKnowledgeBase builds an index over the paragraphs of md. Headings,
// separator lines, and paragraphs shorter than a small minimum are skipped.
func NewKnowledgeBase(md string, threshold float64) *KnowledgeBase {
	kb := &KnowledgeBase{Threshold: threshold}
	for _, para := range splitParagraphs(md) {
		if utf8.RuneCountInString(para) < kbMinParagraphRunes {
			continue
		}
		toks := tokenize(para)
		if len(toks) == 0 {
			continue
		}
		kb.docs = append(kb.docs, kbDoc{text: para, tokens: toks})
	}
	return kb
}

// LoadKnowledgeBase reads a Markdown file and indexes it.
func LoadKnowledgeBase(path string, threshold float64) (*KnowledgeBase, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewKnowledgeBase(string(b), threshold), nil
}

// GenerateReply implements Delegate. It returns the best-matching paragraph,
// or DeclineReply when nothing clears the threshold. It never fails: an empty
// index simply declines.
func (kb *KnowledgeBase) GenerateReply(_ context.Context, text, _ string) (string, error) {
	q := tokenize(text)
	if len(q) == 0 || len(kb.docs) == 0 {
		return DeclineReply, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(kb.docs))
	for i, d := range kb.docs {
		if s := jaccard(q, d.tokens); s > 0 {
			ranked = append(ranked, scored{idx: i, score: s})
		}
	}
	if len(ranked) == 0 {
		return DeclineReply, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	thr := kb.Threshold
	if thr <= 0 {
		thr = 0.2
	}
	if ranked[0].score < thr {
		return DeclineReply, nil
	}
	return kb.docs[ranked[0].idx].text, nil
}

// Len reports the number of indexed paragraphs.
func (kb *KnowledgeBase) Len() int { return len(kb.docs) }

// splitParagraphs breaks Markdown into trimmed, single-line paragraphs,
// dropping headings and horizontal rules.
func splitParagraphs(md string) []string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(md, "\n\n") {
		var lines []string
		for _, ln := range strings.Split(block, "\n") {
			ln = strings.TrimSpace(ln)
			if ln == "" || strings.HasPrefix(ln, "#") || strings.HasPrefix(ln, "---") {
				continue
			}
			lines = append(lines, strings.Join(strings.Fields(ln), " "))
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, " "))
		}
	}
	return out
}

// tokenize lowercases, extracts word tokens, and drops stop-words.
func tokenize(s string) map[string]struct{} {
	toks := kbTokenRE.FindAllString(strings.ToLower(s), -1)
	out := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		if _, stop := kbStopwords[t]; stop {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

// jaccard computes |a ∩ b| / |a ∪ b|.
func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
