// Package jptext post-processes translated Japanese text so that a TTS
// engine pronounces it naturally: numeric constructs are spelled out the way
// a Japanese reader says them, separator punctuation that causes awkward
// pauses is removed, and stray whitespace between Latin and Japanese script
// is collapsed.
//
// Normalize is a pure function and idempotent on its own output, so it is
// safe to apply defensively more than once.
package jptext

import (
	"regexp"
	"strings"
)

var (
	// Translation models occasionally append an "Explanation: ..." block
	// even when instructed not to. Everything from the marker onward is cut.
	reExplanation = regexp.MustCompile(`(?is)explanation:.*`)

	reFraction = regexp.MustCompile(`(\d+)/(\d+)`)
	reDecimal  = regexp.MustCompile(`(\d)\.(\d)`)
	reWaveDash = regexp.MustCompile(`(\d)[〜～](\d)`)
	rePercent  = regexp.MustCompile(`(\d)[％%]`)

	// Four or more consecutive capitals read letter-by-letter sound robotic;
	// "Http" is pronounced as a word. Three or fewer ("USA", "API") stay.
	reAcronym = regexp.MustCompile(`[A-Z]{4,}`)

	reLatinThenJa = regexp.MustCompile(`([A-Za-z0-9])\s+([ぁ-ゖァ-ヶ\x{4E00}-\x{9FFF}])`)
	reJaThenLatin = regexp.MustCompile(`([ぁ-ゖァ-ヶ\x{4E00}-\x{9FFF}])\s+([A-Za-z0-9])`)
	reLetterDigit = regexp.MustCompile(`([A-Za-z])\s+(\d)`)
	reDigitLetter = regexp.MustCompile(`(\d)\s+([A-Za-z])`)
)

// Normalize rewrites translated Japanese text for TTS pronunciation. The
// rules run in a fixed order:
//
//  1. Strip "Explanation:" and everything after it (case-insensitive,
//     spanning newlines).
//  2. Fractions: "1/2" → "1分の2".
//  3. Decimal points between digits: "3.2" → "3てん2".
//  4. Wave dashes between digits: "1～10" → "1から10".
//  5. Percent signs after digits: "50%" / "50％" → "50パーセント".
//  6. Remaining periods → spaces (filenames, abbreviations).
//  7. Hyphens and underscores → spaces.
//  8. Uppercase runs of 4+ letters → capitalized ("HTTP" → "Http").
//  9. Whitespace between Latin letters/digits and Japanese → removed.
//  10. Whitespace between Latin letters and digits → removed.
func Normalize(text string) string {
	text = reExplanation.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	text = reFraction.ReplaceAllString(text, "${1}分の${2}")

	// RE2 has no lookaround, so a capture-group rewrite consumes the digit
	// shared by chained matches ("1.2.3"). Repeating until stable yields the
	// same result as the lookahead form. Each pass removes at least one
	// separator, so the loop terminates.
	text = replaceUntilStable(reDecimal, text, "${1}てん${2}")
	text = replaceUntilStable(reWaveDash, text, "${1}から${2}")

	text = rePercent.ReplaceAllString(text, "${1}パーセント")

	text = strings.ReplaceAll(text, ".", " ")
	text = strings.ReplaceAll(text, "-", " ")
	text = strings.ReplaceAll(text, "_", " ")

	text = reAcronym.ReplaceAllStringFunc(text, func(m string) string {
		return m[:1] + strings.ToLower(m[1:])
	})

	text = reLatinThenJa.ReplaceAllString(text, "$1$2")
	text = reJaThenLatin.ReplaceAllString(text, "$1$2")
	text = reLetterDigit.ReplaceAllString(text, "$1$2")
	text = reDigitLetter.ReplaceAllString(text, "$1$2")

	// Rules 6 and 7 can leave trailing spaces behind.
	return strings.TrimSpace(text)
}

func replaceUntilStable(re *regexp.Regexp, s, repl string) string {
	for {
		out := re.ReplaceAllString(s, repl)
		if out == s {
			return out
		}
		s = out
	}
}
