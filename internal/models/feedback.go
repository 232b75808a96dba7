package models

// Verdict is the AI judge's overall call on the debate.
type Verdict string

const (
	VerdictWin   Verdict = "win"
	VerdictLoss  Verdict = "loss"
	VerdictClose Verdict = "close"
)

// FeedbackCategory scores one judged dimension of the performance.
type FeedbackCategory struct {
	Name         string   `json:"name"`
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// KeyMomentType classifies a notable moment called out by the judge.
type KeyMomentType string

const (
	KeyMomentStrength          KeyMomentType = "strength"
	KeyMomentMissedOpportunity KeyMomentType = "missed_opportunity"
	KeyMomentEffectiveRebuttal KeyMomentType = "effective_rebuttal"
	KeyMomentWeakArgument      KeyMomentType = "weak_argument"
)

// KeyMoment is one notable moment in the debate with a coaching suggestion.
type KeyMoment struct {
	Type        KeyMomentType `json:"type"`
	Description string        `json:"description"`
	Suggestion  string        `json:"suggestion"`
}

// Feedback is the terminal, immutable judging result for a debate.
type Feedback struct {
	OverallScore        int                `json:"overallScore"`
	Verdict             Verdict            `json:"verdict"`
	Summary             string             `json:"summary"`
	Categories          []FeedbackCategory `json:"categories"`
	KeyMoments          []KeyMoment        `json:"keyMoments"`
	ResearchSuggestions []string           `json:"researchSuggestions"`
}
