package analysis

import (
	"time"
)

// ID tipe for an analysis record
type ID string

// RiskLevel enum
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Severity enum for red flags
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// FreeAnalysis is the unpaid teaser: score, tier and a short summary.
type FreeAnalysis struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	Score     int       `json:"score"`
	Summary   string    `json:"summary"`
}

type RedFlag struct {
	Flag        string   `json:"flag"`
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
}

type GreenFlag struct {
	Flag        string `json:"flag"`
	Explanation string `json:"explanation"`
}

type Clause struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Pricing struct {
	Advice      string `json:"advice"`
	RiskPremium string `json:"riskPremium"`
}

// FullAnalysis is the paid report. Every list field may be absent or empty;
// the model is not trusted to fill the whole schema.
type FullAnalysis struct {
	Score           int       `json:"score"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Verdict         string    `json:"verdict"`
	RedFlags        []RedFlag `json:"redFlags,omitempty"`
	GreenFlags      []GreenFlag `json:"greenFlags,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Clauses         []Clause  `json:"clauses,omitempty"`
	Pricing         *Pricing  `json:"pricing,omitempty"`
	Message         string    `json:"message,omitempty"`
}

// Aggregate Root: Record
//
// The id is the sole capability token granting read access; conversation and
// createdAt are immutable after insert, paid only ever flips false -> true,
// and full analysis is written at most once.
type Record struct {
	ID                ID            `json:"id"`
	Conversation      string        `json:"conversation"`
	Free              *FreeAnalysis `json:"freeAnalysis,omitempty"`
	Full              *FullAnalysis `json:"fullAnalysis,omitempty"`
	Paid              bool          `json:"paid"`
	PaymentSessionRef string        `json:"payment_session_ref,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// LevelForScore maps a 0-100 score to its tier: <40 low, 40-69 medium, >=70 high.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ValidLevel reports whether l is one of the three tiers.
func ValidLevel(l RiskLevel) bool {
	return l == RiskLow || l == RiskMedium || l == RiskHigh
}

func levelIndex(l RiskLevel) int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// ClampScore bounds a model-produced score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// NormalizeLevel reconciles a model-produced tier with the score banding.
// A missing or unknown tier is derived from the score; a tier more than one
// band away from the score's band is rewritten from the score.
func NormalizeLevel(l RiskLevel, score int) RiskLevel {
	derived := LevelForScore(score)
	if !ValidLevel(l) {
		return derived
	}
	d := levelIndex(l) - levelIndex(derived)
	if d < -1 || d > 1 {
		return derived
	}
	return l
}
