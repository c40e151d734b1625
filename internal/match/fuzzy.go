package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// TokenSetRatio computes a case-insensitive token-set similarity between two
// strings on a 0-100 scale. Both strings are treated as unordered word sets;
// the score compares the shared tokens against each side's remainder, so a
// merchant name buried in surrounding alert prose still scores 100.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(inter, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := indelRatio(sect, combinedA)
	if r := indelRatio(sect, combinedB); r > best {
		best = r
	}
	if r := indelRatio(combinedA, combinedB); r > best {
		best = r
	}
	return best * 100
}

// indelRatio is the normalized insert/delete similarity of two strings in
// [0,1]. Substitutions cost the same as one delete plus one insert.
func indelRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.Options{
		InsCost: 1,
		DelCost: 1,
		SubCost: 2,
		Matches: levenshtein.IdenticalRunes,
	})
	total := len(ra) + len(rb)
	return float64(total-dist) / float64(total)
}

func tokenSet(s string) map[string]bool {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}
