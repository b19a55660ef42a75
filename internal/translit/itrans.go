package translit

import (
	"strings"
	"unicode/utf8"
)

const virama = "্"

type unitKind int

const (
	unitVowel unitKind = iota
	unitConsonant
	unitMark
)

type unit struct {
	kind unitKind
	// full is the standalone letter; sign is the dependent vowel sign used
	// after a consonant.
	full string
	sign string
}

// itrans maps ITRANS romanization to Bengali letters.
var itrans = map[string]unit{
	"a":   {unitVowel, "অ", ""},
	"aa":  {unitVowel, "আ", "া"},
	"A":   {unitVowel, "আ", "া"},
	"i":   {unitVowel, "ই", "ি"},
	"ii":  {unitVowel, "ঈ", "ী"},
	"I":   {unitVowel, "ঈ", "ী"},
	"ee":  {unitVowel, "ঈ", "ী"},
	"u":   {unitVowel, "উ", "ু"},
	"uu":  {unitVowel, "ঊ", "ূ"},
	"U":   {unitVowel, "ঊ", "ূ"},
	"oo":  {unitVowel, "ঊ", "ূ"},
	"RRi": {unitVowel, "ঋ", "ৃ"},
	"R^i": {unitVowel, "ঋ", "ৃ"},
	"e":   {unitVowel, "এ", "ে"},
	"ai":  {unitVowel, "ঐ", "ৈ"},
	"o":   {unitVowel, "ও", "ো"},
	"au":  {unitVowel, "ঔ", "ৌ"},

	"k":   {unitConsonant, "ক", ""},
	"kh":  {unitConsonant, "খ", ""},
	"g":   {unitConsonant, "গ", ""},
	"gh":  {unitConsonant, "ঘ", ""},
	"~N":  {unitConsonant, "ঙ", ""},
	"ch":  {unitConsonant, "চ", ""},
	"Ch":  {unitConsonant, "ছ", ""},
	"chh": {unitConsonant, "ছ", ""},
	"j":   {unitConsonant, "জ", ""},
	"jh":  {unitConsonant, "ঝ", ""},
	"~n":  {unitConsonant, "ঞ", ""},
	"T":   {unitConsonant, "ট", ""},
	"Th":  {unitConsonant, "ঠ", ""},
	"D":   {unitConsonant, "ড", ""},
	"Dh":  {unitConsonant, "ঢ", ""},
	"N":   {unitConsonant, "ণ", ""},
	"t":   {unitConsonant, "ত", ""},
	"th":  {unitConsonant, "থ", ""},
	"d":   {unitConsonant, "দ", ""},
	"dh":  {unitConsonant, "ধ", ""},
	"n":   {unitConsonant, "ন", ""},
	"p":   {unitConsonant, "প", ""},
	"ph":  {unitConsonant, "ফ", ""},
	"f":   {unitConsonant, "ফ", ""},
	"b":   {unitConsonant, "ব", ""},
	"bh":  {unitConsonant, "ভ", ""},
	"v":   {unitConsonant, "ভ", ""},
	"m":   {unitConsonant, "ম", ""},
	"y":   {unitConsonant, "য", ""},
	"Y":   {unitConsonant, "\u09af\u09bc", ""},
	"r":   {unitConsonant, "র", ""},
	"R":   {unitConsonant, "\u09a1\u09bc", ""},
	"Rh":  {unitConsonant, "\u09a2\u09bc", ""},
	"l":   {unitConsonant, "ল", ""},
	"sh":  {unitConsonant, "শ", ""},
	"Sh":  {unitConsonant, "ষ", ""},
	"s":   {unitConsonant, "স", ""},
	"h":   {unitConsonant, "হ", ""},
	"x":   {unitConsonant, "ক্ষ", ""},
	"GY":  {unitConsonant, "জ্ঞ", ""},

	"M":  {unitMark, "ং", ""},
	"H":  {unitMark, "ঃ", ""},
	".N": {unitMark, "ঁ", ""},
}

const maxKey = 3

// reverseITRANS picks one romanization per Bengali letter. Preferred spellings
// are listed first so they win over aliases.
var reverseITRANS = func() map[string]string {
	preferred := []string{
		"a", "aa", "i", "ii", "u", "uu", "RRi", "e", "ai", "o", "au",
		"k", "kh", "g", "gh", "~N", "ch", "chh", "j", "jh", "~n",
		"T", "Th", "D", "Dh", "N", "t", "th", "d", "dh", "n",
		"p", "ph", "b", "bh", "m", "y", "Y", "r", "R", "Rh", "l",
		"sh", "Sh", "s", "h", "x", "GY", "M", "H", ".N",
	}
	m := make(map[string]string)
	for _, key := range preferred {
		u := itrans[key]
		if _, ok := m[u.full]; !ok {
			m[u.full] = key
		}
		if u.sign != "" {
			if _, ok := m[u.sign]; !ok {
				m[u.sign] = key
			}
		}
	}
	return m
}()

var bengaliDigits = []rune("০১২৩৪৫৬৭৮৯")

func match(s string) (unit, int) {
	for l := min(maxKey, len(s)); l > 0; l-- {
		if u, ok := itrans[s[:l]]; ok {
			return u, l
		}
	}
	// Case-insensitive second chance so "Bhalo" converts like "bhalo".
	lower := strings.ToLower(s[:min(maxKey, len(s))])
	for l := min(maxKey, len(lower)); l > 0; l-- {
		if u, ok := itrans[lower[:l]]; ok {
			return u, l
		}
	}
	return unit{}, 0
}

// ToBengali converts ITRANS romanization to Bengali script by longest match.
// Consonant clusters are joined with a virama; a word-final consonant keeps
// its inherent vowel. Unknown characters pass through.
func ToBengali(s string) string {
	var b strings.Builder
	afterConsonant := false
	for i := 0; i < len(s); {
		u, n := match(s[i:])
		if n == 0 {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r >= '0' && r <= '9' {
				r = bengaliDigits[r-'0']
			}
			b.WriteRune(r)
			afterConsonant = false
			i += size
			continue
		}
		switch u.kind {
		case unitVowel:
			if afterConsonant {
				b.WriteString(u.sign)
			} else {
				b.WriteString(u.full)
			}
			afterConsonant = false
		case unitConsonant:
			if afterConsonant {
				b.WriteString(virama)
			}
			b.WriteString(u.full)
			afterConsonant = true
		default:
			b.WriteString(u.full)
			afterConsonant = false
		}
		i += n
	}
	return b.String()
}

// ToRoman converts Bengali script back to ITRANS, spelling out the inherent
// vowel of every consonant not followed by a vowel sign or virama.
func ToRoman(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i := 0; i < len(rs); {
		r := rs[i]
		if r >= bengaliDigits[0] && r <= bengaliDigits[9] {
			b.WriteRune('0' + (r - bengaliDigits[0]))
			i++
			continue
		}
		key, n := matchBengali(rs[i:])
		if n == 0 {
			if string(r) != virama {
				b.WriteRune(r)
			}
			i++
			continue
		}
		b.WriteString(key)
		i += n
		if itrans[key].kind == unitConsonant && !vowelFollows(rs[i:]) {
			b.WriteByte('a')
		}
	}
	return b.String()
}

// matchBengali finds the longest letter at the start of rs. Conjuncts and
// nukta letters span several code points.
func matchBengali(rs []rune) (string, int) {
	for l := min(3, len(rs)); l > 0; l-- {
		if key, ok := reverseITRANS[string(rs[:l])]; ok {
			return key, l
		}
	}
	return "", 0
}

func vowelFollows(rs []rune) bool {
	if len(rs) == 0 {
		return false
	}
	next := string(rs[0])
	if next == virama {
		return true
	}
	key, ok := reverseITRANS[next]
	return ok && itrans[key].kind == unitVowel && itrans[key].sign == next
}
