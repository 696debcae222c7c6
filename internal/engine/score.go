package engine

// ScoreKind tags the two shapes an engine evaluation can take.
type ScoreKind int

const (
	// ScoreCentipawns is a bounded numeric advantage.
	ScoreCentipawns ScoreKind = iota
	// ScoreMate is a forced-mate distance in signed plies.
	ScoreMate
)

// Score is an engine evaluation of a position, from the perspective of the
// side to move: positive means the side to move is winning.
type Score struct {
	Kind       ScoreKind
	Centipawns int
	MatePlies  int
}

// Oriented flips the score sign when needed so that positive favors the
// requested perspective rather than the side to move.
func (s Score) Oriented(flip bool) Score {
	if !flip {
		return s
	}
	out := s
	out.Centipawns = -s.Centipawns
	out.MatePlies = -s.MatePlies
	return out
}
