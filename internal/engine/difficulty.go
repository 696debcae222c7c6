package engine

import "github.com/gambitlabs/gambit/internal/domain"

// skillLevels maps the public difficulty levels onto the Stockfish
// "Skill Level" scale (0-20).
var skillLevels = map[domain.Difficulty]int{
	domain.DifficultyEasy:   5,
	domain.DifficultyMedium: 10,
	domain.DifficultyHard:   20,
}

const defaultSkillLevel = 10

// SkillFor resolves a difficulty to an engine skill level; unknown levels
// get the Medium value.
func SkillFor(d domain.Difficulty) int {
	if skill, ok := skillLevels[d]; ok {
		return skill
	}
	return defaultSkillLevel
}
