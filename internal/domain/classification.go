package domain

// ClassificationResult is the AI-derived metadata attached to a ticket.
// The advisory fields are informational only.
type ClassificationResult struct {
	EnhancedDescription     string         `json:"enhancedDescription"`
	SuggestedSkills         []string       `json:"suggestedSkills"`
	Priority                TicketPriority `json:"priority"`
	Category                string         `json:"category"`
	ComplexityScore         int            `json:"complexityScore"`
	EstimatedResolutionTime string         `json:"estimatedResolutionTime"`

	SubCategory         string   `json:"subCategory,omitempty"`
	Sentiment           string   `json:"sentiment,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	AffectedSystems     []string `json:"affectedSystems,omitempty"`
	RootCauseHypothesis string   `json:"rootCauseHypothesis,omitempty"`
	RecommendedAction   string   `json:"recommendedAction,omitempty"`
}
