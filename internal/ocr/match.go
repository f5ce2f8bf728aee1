package ocr

import (
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// MaxCharacterErrorRate is the highest CER at which an accession still
// counts as legible
const MaxCharacterErrorRate = 0.34

// IllegibleMessage is the capture warning raised for a failed match
const IllegibleMessage = "accession not legible on label"

// Match is the closest transcript token to an accession
type Match struct {
	Accession string  `json:"accession"`
	Token     string  `json:"token,omitempty"`
	Distance  int     `json:"distance"`
	CER       float64 `json:"character_error_rate"`
	WER       float64 `json:"word_error_rate"`
	Legible   bool    `json:"legible"`
}

// Tokenize splits a transcript into upper-cased word tokens, dropping
// punctuation at token edges
func Tokenize(transcript string) []string {
	fields := strings.Fields(transcript)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			tokens = append(tokens, strings.ToUpper(f))
		}
	}
	return tokens
}

// candidates are the single tokens plus adjacent pairs joined, since
// OCR often splits a prefix from its number
func candidates(tokens []string) []string {
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+tokens[i+1])
	}
	return out
}

// MatchAccession finds the transcript token nearest to accession by
// Levenshtein distance
func MatchAccession(accession, transcript string) Match {
	ref := strings.ToUpper(strings.TrimSpace(accession))
	m := Match{Accession: accession, CER: 1, WER: 1}
	if ref == "" {
		return m
	}

	refLen := len([]rune(ref))
	best := -1
	for _, c := range candidates(Tokenize(transcript)) {
		d := levenshtein.Distance(ref, c)
		if best < 0 || d < best {
			best = d
			m.Token = c
		}
	}
	if best < 0 {
		return m
	}

	m.Distance = best
	m.CER = float64(best) / float64(refLen)
	if m.CER > 1 {
		m.CER = 1
	}
	m.WER, _ = wer.WER([]string{ref}, []string{m.Token})
	m.Legible = m.CER <= MaxCharacterErrorRate
	return m
}
