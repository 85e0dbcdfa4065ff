package lexicon

import (
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
)

// ComputeHeuristics scores text on casing plausibility, garbage likelihood and
// pronounceability. All scores are in [0,1].
func ComputeHeuristics(text string) model.Heuristics {
	runes := []rune(text)
	if len(runes) == 0 {
		return model.Heuristics{Garbage: 1}
	}
	return model.Heuristics{
		Casing:   casingScore(runes),
		Garbage:  garbageScore(runes),
		Phonetic: phoneticScore(runes),
	}
}

// casingScore is 1 for lower, upper or capitalized words and falls with the
// number of case switches between adjacent letters.
func casingScore(runes []rune) float64 {
	var letters, upper, switches int
	prevUpper, havePrev := false, false
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		isUpper := unicode.IsUpper(r)
		if isUpper {
			upper++
		}
		if havePrev && isUpper != prevUpper {
			switches++
		}
		prevUpper, havePrev = isUpper, true
	}
	switch {
	case letters == 0:
		return 0
	case upper == 0, upper == letters:
		return 1
	case upper == 1 && unicode.IsUpper(firstLetter(runes)):
		return 1
	case letters == 1:
		return 1
	}
	return clamp(1 - float64(switches)/float64(letters-1))
}

func firstLetter(runes []rune) rune {
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return r
		}
	}
	return 0
}

// garbageScore grows with symbol density, letter/digit mixing and long runs
// of one repeated character.
func garbageScore(runes []rune) float64 {
	var letters, digits, symbols int
	longestRun, run := 1, 1
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		default:
			symbols++
		}
		if i > 0 {
			if unicode.ToLower(r) == unicode.ToLower(runes[i-1]) {
				run++
				longestRun = max(longestRun, run)
			} else {
				run = 1
			}
		}
	}
	n := float64(len(runes))
	score := float64(symbols) / n
	if letters > 0 && digits > 0 {
		score += 0.5 * float64(min(letters, digits)) / n
	}
	if longestRun > 2 {
		score += float64(longestRun-2) / n
	}
	return clamp(score)
}

// phoneticScore rewards a natural vowel ratio and penalizes long consonant
// clusters.
func phoneticScore(runes []rune) float64 {
	var letters, vowels int
	longestCluster, cluster := 0, 0
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			cluster = 0
			continue
		}
		letters++
		if isVowel(r) {
			vowels++
			cluster = 0
			continue
		}
		cluster++
		longestCluster = max(longestCluster, cluster)
	}
	if letters == 0 {
		return 0
	}
	ratio := float64(vowels) / float64(letters)
	score := 1 - abs(ratio-0.4)/0.6
	if longestCluster > 3 {
		score *= 3 / float64(longestCluster)
	}
	return clamp(score)
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y',
		'à', 'á', 'â', 'ä', 'è', 'é', 'ê', 'ë', 'ì', 'í', 'î', 'ï', 'ò', 'ó', 'ô', 'ö', 'ù', 'ú', 'û', 'ü':
		return true
	}
	return false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(x float64) float64 {
	return min(max(x, 0), 1)
}
