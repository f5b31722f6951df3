package types

// Candidate is one catalog entry ranked against an intent. Score is a
// similarity in (0,1], higher is better. Candidate lists are recomputed per
// request from the live index and never cached across requests.
type Candidate struct {
	ID          string            `json:"id"`
	Score       float64           `json:"score"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
