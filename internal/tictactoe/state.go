package tictactoe

import (
	"fmt"
	"strings"
)

// Turn says which side moves next.
type Turn uint8

const (
	PlayerTurn Turn = iota
	OpponentTurn
)

func (t Turn) String() string {
	switch t {
	case PlayerTurn:
		return "player"
	case OpponentTurn:
		return "opponent"
	default:
		return fmt.Sprintf("Turn(%d)", uint8(t))
	}
}

func (t Turn) MarshalText() ([]byte, error) {
	if t > OpponentTurn {
		return nil, fmt.Errorf("unknown turn %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Turn) UnmarshalText(text []byte) error {
	turn, err := ParseTurn(string(text))
	if err != nil {
		return err
	}

	*t = turn
	return nil
}

func ParseTurn(s string) (Turn, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player":
		return PlayerTurn, nil
	case "opponent":
		return OpponentTurn, nil
	default:
		return PlayerTurn, fmt.Errorf("unknown turn %q", s)
	}
}

// Outcome is the result of a session. Every value but InProgress is terminal.
type Outcome uint8

const (
	InProgress Outcome = iota
	PlayerWin
	OpponentWin
	Draw
)

var outcomeNames = map[Outcome]string{
	InProgress:  "in_progress",
	PlayerWin:   "player_win",
	OpponentWin: "opponent_win",
	Draw:        "draw",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

func (o Outcome) IsTerminal() bool {
	return o != InProgress
}

func (o Outcome) MarshalText() ([]byte, error) {
	name, ok := outcomeNames[o]
	if !ok {
		return nil, fmt.Errorf("unknown outcome %d", uint8(o))
	}
	return []byte(name), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for outcome, name := range outcomeNames {
		if name == string(text) {
			*o = outcome
			return nil
		}
	}

	return fmt.Errorf("unknown outcome %q", text)
}
