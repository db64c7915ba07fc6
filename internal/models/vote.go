package models

// VoteType is the kind of a vote.
type VoteType string

// Vote types.
const (
	VoteGood VoteType = "good"
	VoteBad  VoteType = "bad"
)

// Valid reports whether t is a known vote type.
func (t VoteType) Valid() bool {
	return t == VoteGood || t == VoteBad
}

// Vote is a single endorsement or objection recorded against a document version.
type Vote struct {
	DocID     string   `json:"doc_id"`
	Version   int      `json:"version"`
	VoteType  VoteType `json:"vote_type"`
	VoterInfo string   `json:"voter_info"`
	CreatedAt string   `json:"created_at"`
}

// VoteRequest is the body of POST /vote.
type VoteRequest struct {
	DocID    string   `json:"doc_id"`
	Version  int      `json:"version"`
	VoteType VoteType `json:"vote_type"`
}
