package analysis

import (
	"sort"
	"strings"
	"unicode"

	"github.com/soundcheck-ai/soundcheck/internal/config"
	"github.com/soundcheck-ai/soundcheck/internal/protocol"
)

// Analyzer scores transcribed answers for delivery quality and relevance
// against a job description.
type Analyzer struct {
	cfg     config.AnalysisConfig
	fillers [][]string
}

func New(cfg config.AnalysisConfig) *Analyzer {
	fillers := make([][]string, 0, len(cfg.FillerWords))
	for _, phrase := range cfg.FillerWords {
		tokens := Tokenize(phrase)
		if len(tokens) > 0 {
			fillers = append(fillers, tokens)
		}
	}
	// Longest phrase first so "you know" wins over a bare "you".
	sort.SliceStable(fillers, func(i, j int) bool {
		return len(fillers[i]) > len(fillers[j])
	})
	return &Analyzer{cfg: cfg, fillers: fillers}
}

// Tokenize lowercases text and splits it into word tokens. Apostrophes stay
// inside tokens so contractions count as one word.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// AnalyzeSpeech counts words and filler occurrences in a transcript.
// A multi-word filler phrase counts as a single filler occurrence.
func (a *Analyzer) AnalyzeSpeech(text string) protocol.SpeechAnalysis {
	tokens := Tokenize(text)
	fillerCount := 0
	for i := 0; i < len(tokens); {
		matched := 0
		for _, phrase := range a.fillers {
			if matchesAt(tokens, i, phrase) {
				matched = len(phrase)
				break
			}
		}
		if matched > 0 {
			fillerCount++
			i += matched
			continue
		}
		i++
	}

	total := len(tokens)
	ratio := 0.0
	if total > 0 {
		ratio = float64(fillerCount) / float64(total)
	}
	return protocol.SpeechAnalysis{
		TotalWords:  total,
		FillerWords: fillerCount,
		FillerRatio: ratio,
	}
}

func matchesAt(tokens []string, pos int, phrase []string) bool {
	if pos+len(phrase) > len(tokens) {
		return false
	}
	for i, want := range phrase {
		if tokens[pos+i] != want {
			return false
		}
	}
	return true
}

// ScoreAnswer computes keyword overlap between the answer and the job
// description. Returns nil when no job description was supplied.
func (a *Analyzer) ScoreAnswer(text, jobDescription string) *protocol.RelevanceScore {
	if strings.TrimSpace(jobDescription) == "" {
		return nil
	}

	keywords := make(map[string]struct{})
	for _, token := range Tokenize(jobDescription) {
		if isStopword(token) || !isAlphanumeric(token) {
			continue
		}
		keywords[token] = struct{}{}
	}

	answerTokens := make(map[string]struct{})
	for _, token := range Tokenize(text) {
		answerTokens[token] = struct{}{}
	}

	var matched []string
	for kw := range keywords {
		if _, ok := answerTokens[kw]; ok {
			matched = append(matched, kw)
		}
	}
	sort.Strings(matched)

	score := 0.0
	if len(keywords) > 0 {
		score = float64(len(matched)) / float64(len(keywords)) * 100
	}
	return &protocol.RelevanceScore{
		Score:           score,
		MatchedKeywords: matched,
	}
}

func isAlphanumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return token != ""
}

// Feedback applies the coaching rules in a fixed order and always returns at
// least one entry.
func (a *Analyzer) Feedback(speech protocol.SpeechAnalysis, score *protocol.RelevanceScore) []string {
	var feedback []string

	if speech.FillerRatio > a.cfg.FillerRatioAlert {
		feedback = append(feedback, "Try to reduce filler words like 'um', 'uh', and 'like'.")
	}
	if speech.TotalWords < a.cfg.MinDetailedWords {
		feedback = append(feedback, "Consider providing more detailed answers.")
	} else if speech.TotalWords > a.cfg.MaxConciseWords {
		feedback = append(feedback, "Your answer might be too long. Try to be more concise.")
	}
	if score != nil && score.Score < a.cfg.LowScoreThreshold {
		feedback = append(feedback, "Try to incorporate more keywords from the job description.")
	}
	if len(feedback) == 0 {
		feedback = append(feedback, "Great job! Your answer was clear and well-structured.")
	}
	return feedback
}
