package translit

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"gobengali/internal/service"
)

// DefaultMaxSuggestions is how many candidates a lookup returns.
const DefaultMaxSuggestions = 4

// Where suggestions came from.
const (
	SourceService  = "service"
	SourceOffline  = "offline"
	SourceFallback = "fallback"
)

// Transliterator is the remote side of a lookup.
type Transliterator interface {
	Transliterate(ctx context.Context, req service.TransliterateRequest) (*service.TransliterateResponse, error)
}

// Result is a ranked list of candidates for one token.
type Result struct {
	Token       Token                `json:"token"`
	Suggestions []service.Suggestion `json:"suggestions"`
	Source      string               `json:"source"`
}

// Empty reports whether there is nothing to offer.
func (r Result) Empty() bool { return len(r.Suggestions) == 0 }

// Options configure a Lookup.
type Options struct {
	MaxSuggestions int
	// Offline skips the service and always converts locally.
	Offline bool
	Logger  *slog.Logger
}

// Lookup produces suggestions for tokens.
type Lookup struct {
	svc     Transliterator
	max     int
	offline bool
	log     *slog.Logger
}

// NewLookup creates a Lookup. A nil svc behaves as Offline.
func NewLookup(svc Transliterator, opts Options) *Lookup {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Lookup{
		svc:     svc,
		max:     opts.MaxSuggestions,
		offline: opts.Offline || svc == nil,
		log:     opts.Logger.With("component", "translit"),
	}
}

// Suggest returns candidates for tok ordered by descending score. Failures of
// the service degrade to local conversion; the result is never an error.
// Non-qualifying tokens get an empty result.
func (l *Lookup) Suggest(ctx context.Context, tok Token) Result {
	res := Result{Token: tok}
	if !tok.Qualifies() {
		return res
	}

	if !l.offline {
		resp, err := l.svc.Transliterate(ctx, service.TransliterateRequest{
			Text:           tok.Text,
			MaxSuggestions: l.max,
			Reverse:        tok.Class.Reverse(),
		})
		switch {
		case err == nil:
			if s := l.rank(resp.Suggestions); len(s) > 0 {
				res.Suggestions, res.Source = s, SourceService
				return res
			}
		case ctx.Err() != nil:
			return res
		default:
			l.log.Warn("transliteration failed, converting locally", "class", tok.Class.String(), "error", err)
		}
	}

	if s := l.rank(offline(tok)); len(s) > 0 {
		res.Suggestions, res.Source = s, SourceOffline
		return res
	}
	res.Suggestions = []service.Suggestion{{Text: tok.Text, Score: 1}}
	res.Source = SourceFallback
	return res
}

// rank normalizes to NFC, drops blanks and duplicates (keeping the better
// score), sorts by descending score and truncates.
func (l *Lookup) rank(in []service.Suggestion) []service.Suggestion {
	out := make([]service.Suggestion, 0, len(in))
	seen := make(map[string]int, len(in))
	for _, s := range in {
		t := norm.NFC.String(strings.TrimSpace(s.Text))
		if t == "" {
			continue
		}
		if i, ok := seen[t]; ok {
			out[i].Score = max(out[i].Score, s.Score)
			continue
		}
		seen[t] = len(out)
		out = append(out, service.Suggestion{Text: t, Score: s.Score})
	}
	slices.SortStableFunc(out, func(a, b service.Suggestion) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(out) > l.max {
		out = out[:l.max]
	}
	return out
}

// offline converts a token without the service.
func offline(tok Token) []service.Suggestion {
	if tok.Class == ClassTarget {
		return respell(tok.Text)
	}
	word := strings.ToLower(tok.Text)
	var out []service.Suggestion
	for i, s := range toBengali[word] {
		out = append(out, service.Suggestion{Text: s, Score: ranked(i)})
	}
	for i, v := range []string{
		tok.Text,
		strings.ReplaceAll(tok.Text, "o", "u"),
		strings.ReplaceAll(tok.Text, "a", "aa"),
	} {
		out = append(out, service.Suggestion{Text: ToBengali(v), Score: 0.9 - float64(i)*0.05})
	}
	return out
}

// respell offers alternative Bengali spellings of a Bengali word by going
// through its romanizations.
func respell(word string) []service.Suggestion {
	romans := romanFor(norm.NFC.String(word))
	if r := ToRoman(word); r != "" {
		romans = append(romans, r, strings.ReplaceAll(r, "a", "aa"))
	}
	var out []service.Suggestion
	for _, r := range romans {
		cands := toBengali[r]
		if len(cands) == 0 {
			cands = []string{ToBengali(r)}
		}
		for _, c := range cands {
			out = append(out, service.Suggestion{Text: c, Score: ranked(len(out))})
		}
	}
	return out
}

func ranked(i int) float64 {
	return max(1-float64(i)*0.05, 0.05)
}
