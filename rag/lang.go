package rag

import "unicode"

// isJapaneseRune reports whether r falls in the Hiragana, Katakana or
// common Han block.
func isJapaneseRune(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) ||
		(r >= 0x30A0 && r <= 0x30FF) ||
		(r >= 0x4E00 && r <= 0x9FFF)
}

// IsJapanese reports whether at least half of the content runes in
// text are Japanese script. Space and punctuation runes are ignored,
// so "第32条 là gì?" counts its digits and Latin letters against the
// ratio while "労働時間の上限は？" does not lose its trailing mark.
func IsJapanese(text string) bool {
	var total, japanese int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		if isJapaneseRune(r) {
			japanese++
		}
	}
	if total == 0 {
		return false
	}
	return float64(japanese)/float64(total) >= 0.5
}
