package models

// MatchPatch is a typed partial update for a pending match. Only the
// fields named here may be changed through the generic update operation;
// nil means "leave unchanged".
type MatchPatch struct {
	Players   *[]MatchPlayer `json:"players,omitempty"`
	Flagged   *bool          `json:"flagged,omitempty"`
	FlaggedBy *string        `json:"flaggedBy,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *MatchPatch) Empty() bool {
	return p == nil || (p.Players == nil && p.Flagged == nil && p.FlaggedBy == nil)
}
