package service

// AnalyzeRequest asks for corrections (and, without a language hint, a
// translation) of a text.
type AnalyzeRequest struct {
	Text          string `json:"text"`
	Lang          string `json:"lang,omitempty"`
	CheckGrammar  bool   `json:"check_grammar"`
	CheckSpelling bool   `json:"check_spelling"`
}

// Issue is one correction as reported by the analysis service. Offsets are
// Unicode code points into the analyzed text.
type Issue struct {
	Type         string   `json:"type"`
	Offset       int      `json:"offset"`
	Length       int      `json:"length"`
	OriginalText string   `json:"original_text"`
	Suggestions  []string `json:"suggestions"`
	Message      string   `json:"message"`
	Reason       string   `json:"reason,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// AnalyzeResponse is the analysis service's reply.
type AnalyzeResponse struct {
	TranslatedText   string  `json:"translated_text"`
	DetectedLanguage string  `json:"detected_language"`
	Errors           []Issue `json:"errors"`
	WordCount        int     `json:"word_count"`
	CharCount        int     `json:"char_count"`
}

type TransliterateRequest struct {
	Text           string `json:"text"`
	MaxSuggestions int    `json:"max_suggestions"`
	Reverse        bool   `json:"reverse,omitempty"`
}

// Suggestion is a ranked transliteration candidate.
type Suggestion struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type TransliterateResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

type DetectRequest struct {
	Text string `json:"text"`
}

type DetectResponse struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// HealthResponse is the body of GET /health. Extra fields are ignored.
type HealthResponse struct {
	Status string `json:"status"`
}
