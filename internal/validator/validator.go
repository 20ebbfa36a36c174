// Package validator scores how well an assistant reply is supported by the
// source snippets it was generated from.
package validator

import (
	"strings"
	"unicode"
)

// DefaultThreshold is the confidence below which a reply is flagged.
const DefaultThreshold = 0.35

// Report is the outcome of a grounding check.
type Report struct {
	Confidence float64  `json:"confidence"`
	Grounded   bool     `json:"grounded"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Validator applies a confidence threshold to grounding scores.
type Validator struct {
	threshold float64
}

// New creates a validator. A threshold outside (0, 1] uses DefaultThreshold.
func New(threshold float64) *Validator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Validator{threshold: threshold}
}

// Threshold returns the configured threshold.
func (v *Validator) Threshold() float64 { return v.threshold }

// hedges are phrases that signal the model is unsure or refusing.
var hedges = []string{
	"i'm not sure", "i am not sure", "i don't know", "i do not know",
	"i cannot", "i can't", "as an ai", "i think", "probably", "might be",
	"saya tidak tahu", "mungkin", "kurang yakin",
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"was": true, "be": true, "it": true, "this": true, "that": true, "with": true,
	"you": true, "your": true, "we": true, "our": true, "at": true, "as": true,
	"by": true, "from": true, "can": true, "will": true, "yang": true, "dan": true,
	"di": true, "ke": true, "dari": true, "untuk": true, "ini": true, "itu": true,
}

// Validate scores reply against sources. With sources, the score is the share
// of reply content tokens found in them. Without sources the reply is never
// grounded and the score comes from length and hedging alone.
func (v *Validator) Validate(reply string, sources []string) Report {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Report{Confidence: 0, Grounded: false, Reasons: []string{"empty reply"}}
	}

	var reasons []string
	replyTokens := tokenize(reply)
	lower := strings.ToLower(reply)

	hedged := false
	for _, h := range hedges {
		if strings.Contains(lower, h) {
			hedged = true
			break
		}
	}

	var score float64
	grounded := false

	if len(sources) == 0 {
		reasons = append(reasons, "no sources")
		score = 0.5
		if len(replyTokens) < 3 {
			score -= 0.2
			reasons = append(reasons, "very short reply")
		}
	} else {
		known := make(map[string]bool)
		for _, s := range sources {
			for _, tok := range tokenize(s) {
				known[tok] = true
			}
		}
		if len(replyTokens) == 0 {
			score = 0
			reasons = append(reasons, "no content words")
		} else {
			hit := 0
			for _, tok := range replyTokens {
				if known[tok] {
					hit++
				}
			}
			score = float64(hit) / float64(len(replyTokens))
			if score < v.threshold {
				reasons = append(reasons, "low overlap with sources")
			}
		}
	}

	if hedged {
		score -= 0.15
		reasons = append(reasons, "hedging language")
	}
	score = clamp(score)

	if len(sources) > 0 && score >= v.threshold {
		grounded = true
	}
	return Report{Confidence: round(score), Grounded: grounded, Reasons: reasons}
}

// Flag reports whether a report falls below the threshold.
func (v *Validator) Flag(r Report) bool {
	return r.Confidence < v.threshold
}

// tokenize lowercases s, splits on non letters and digits, and drops
// stopwords and one-rune tokens. Duplicates are kept once.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func round(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
