// Package voteview aggregates individual votes per document version and
// renders the vote results table.
package voteview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/docdesk/internal/models"
)

// Key identifies a (document, version) group.
type Key struct {
	DocID   string
	Version int
}

// String encodes the key as "<doc_id>@<version>".
func (k Key) String() string {
	return k.DocID + "@" + strconv.Itoa(k.Version)
}

// ParseKey decodes a key produced by Key.String.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return Key{}, fmt.Errorf("voteview: invalid group key %q", s)
	}
	v, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Key{}, fmt.Errorf("voteview: invalid version in group key %q: %w", s, err)
	}
	return Key{DocID: s[:i], Version: v}, nil
}

// Group is the tally of one document version.
type Group struct {
	Key
	GoodVotes int
	BadVotes  int
	Votes     []models.Vote
}

// Aggregate groups votes by (doc_id, version) in order of first appearance.
// Votes of unknown type are kept in Votes but counted in neither tally.
func Aggregate(votes []models.Vote) []Group {
	index := make(map[Key]int)
	var groups []Group

	for _, v := range votes {
		k := Key{DocID: v.DocID, Version: v.Version}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		g := &groups[i]
		switch v.VoteType {
		case models.VoteGood:
			g.GoodVotes++
		case models.VoteBad:
			g.BadVotes++
		}
		g.Votes = append(g.Votes, v)
	}
	return groups
}
