package model

import (
	"fmt"
	"strings"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
)

type GameStatus uint8

const (
	GameWaitingForPlayers GameStatus = iota
	GameDelegated
	GameInProgress
	GameFinished
	GameCancelled
)

var gameStatusNames = map[GameStatus]string{
	GameWaitingForPlayers: "WAITING_FOR_PLAYERS",
	GameDelegated:         "DELEGATED",
	GameInProgress:        "IN_PROGRESS",
	GameFinished:          "FINISHED",
	GameCancelled:         "CANCELLED",
}

func (s GameStatus) Valid() bool {
	_, ok := gameStatusNames[s]
	return ok
}

func (s GameStatus) String() string {
	if name, ok := gameStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameStatus(%d)", uint8(s))
}

func (s GameStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown game status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *GameStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseGameStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseGameStatus(value string) (GameStatus, error) {
	for status, name := range gameStatusNames {
		if name == value {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown game status %q", value)
}

type GameMode uint8

const (
	OneVsOne GameMode = iota
	TwoVsTwo
)

func (m GameMode) Valid() bool {
	return m == OneVsOne || m == TwoVsTwo
}

// TeamCapacity is the number of slots on each side.
func (m GameMode) TeamCapacity() int {
	if m == TwoVsTwo {
		return 2
	}
	return 1
}

func (m GameMode) PlayerCount() int {
	return m.TeamCapacity() * 2
}

func (m GameMode) String() string {
	switch m {
	case OneVsOne:
		return "ONE_VS_ONE"
	case TwoVsTwo:
		return "TWO_VS_TWO"
	default:
		return fmt.Sprintf("GameMode(%d)", uint8(m))
	}
}

func (m GameMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, reject.ErrInvalidGameMode
	}
	return []byte(m.String()), nil
}

func (m *GameMode) UnmarshalText(text []byte) error {
	parsed, err := ParseGameMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func ParseGameMode(value string) (GameMode, error) {
	switch value {
	case "ONE_VS_ONE":
		return OneVsOne, nil
	case "TWO_VS_TWO":
		return TwoVsTwo, nil
	default:
		return 0, reject.ErrInvalidGameMode
	}
}

// BotDifficulty is the play style requested for the practice bot. Shots are
// fired in chamber order whatever the style, so it only informs the bot service.
type BotDifficulty string

const (
	BotEasy   BotDifficulty = "EASY"
	BotMedium BotDifficulty = "MEDIUM"
	BotHard   BotDifficulty = "HARD"
)

func ParseBotDifficulty(value string) (BotDifficulty, error) {
	switch d := BotDifficulty(strings.ToUpper(value)); d {
	case BotEasy, BotMedium, BotHard:
		return d, nil
	case "":
		return BotEasy, nil
	default:
		return "", reject.ErrInvalidBotDifficulty
	}
}

// Location tags which context currently holds write authority over a game.
type Location uint8

const (
	LocationBase Location = iota
	LocationExecution
)

func (l Location) String() string {
	if l == LocationExecution {
		return "EXECUTION"
	}
	return "BASE"
}

func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Location) UnmarshalText(text []byte) error {
	switch string(text) {
	case "BASE":
		*l = LocationBase
	case "EXECUTION":
		*l = LocationExecution
	default:
		return fmt.Errorf("unknown location %q", string(text))
	}
	return nil
}

type Team uint8

const (
	TeamA Team = 0
	TeamB Team = 1
)

func (t Team) Opponent() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

func (t Team) String() string {
	if t == TeamB {
		return "B"
	}
	return "A"
}
