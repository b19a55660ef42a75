package translit

import "strings"

// Hand-curated candidates for common words. They take precedence over the
// mechanical ITRANS conversion when the service cannot be reached.

// toBengali lists Bengali spellings of frequent romanized words, best first.
var toBengali = map[string][]string{
	"ami":   {"আমি", "অমি", "আম"},
	"tumi":  {"তুমি", "তুম", "তুমী"},
	"i":     {"আই", "আমি"},
	"me":    {"মি", "আমি", "আমাকে"},
	"you":   {"ইউ", "আপনি", "তুমি"},
	"hi":    {"হাই", "হি", "হে"},
	"hello": {"হ্যালো", "হেলো", "হ্যাল্লো", "হ্যাঁলো"},
	"how":   {"হাও", "হও", "হাউ", "হাওয়া"},
	"are":   {"আর", "আরে", "আর্", "এর"},
	"will":  {"উইল", "ওইল", "উইল্", "ওয়িল"},
	"good":  {"গুড", "ভালো", "ভাল", "গুদ"},
	"bhalo": {"ভালো", "ভাল"},
	"valo":  {"ভালো", "ভাল"},
	"kemon": {"কেমন", "কেমুন"},
}

// toRoman lists romanizations of frequent Bengali words and letters. A token
// that is only the start of a listed word borrows that word's entry, which
// keeps suggestions coming while a word is being deleted.
var toRoman = map[string][]string{
	"আমি":    {"ami", "me", "i"},
	"তুমি":   {"tumi", "you"},
	"কেমন":   {"kemon", "how"},
	"ভালো":   {"bhalo", "good", "valo"},
	"হ্যালো": {"hello", "hallo"},
	"হাই":    {"hi", "high", "hai"},
	"আ":      {"a", "aa", "am", "ar"},
	"ই":      {"i", "ee", "in", "is"},
	"ও":      {"o", "oh", "ou", "ow"},
	"হ":      {"ha", "ho", "he", "hi"},
	"ক":      {"ka", "ke", "ko", "ki"},
	"ত":      {"ta", "te", "to", "ti"},
	"ম":      {"ma", "me", "mo", "mi"},
	"ভ":      {"bha", "va", "bho", "vo"},
}

// romanFor returns the curated romanizations for word: an exact entry, or
// the entry of the shortest listed word that word is a prefix of.
func romanFor(word string) []string {
	if rs, ok := toRoman[word]; ok {
		return rs
	}
	var best string
	for w := range toRoman {
		if len(w) > len(word) && strings.HasPrefix(w, word) && (best == "" || len(w) < len(best) || len(w) == len(best) && w < best) {
			best = w
		}
	}
	if best == "" {
		return nil
	}
	return toRoman[best]
}
