// Package store persists engine decisions as zstd-compressed parquet batches.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/search"
)

// Sources recorded in DecisionRow.Source.
const (
	SourceServer   = "server"
	SourceSelfPlay = "selfplay"
	SourceReplay   = "replay"
)

// DecisionRow is one move chosen by the engine for one snake on one turn.
//
// Actual is only set for replays, where it holds the move the snake really
// played. Score is +Inf/-Inf for forced wins and losses.
type DecisionRow struct {
	GameID    string  `parquet:"game_id,dict"`
	Turn      int32   `parquet:"turn"`
	Source    string  `parquet:"source,dict"`
	SnakeID   string  `parquet:"snake_id,dict"`
	Width     int32   `parquet:"width"`
	Height    int32   `parquet:"height"`
	Snakes    int32   `parquet:"snakes"`
	Health    int32   `parquet:"health"`
	Length    int32   `parquet:"length"`
	Move      string  `parquet:"move,dict"`
	Fallback  string  `parquet:"fallback,dict"`
	Score     float64 `parquet:"score"`
	Depth     int32   `parquet:"depth"`
	Nodes     int64   `parquet:"nodes"`
	ElapsedUs int64   `parquet:"elapsed_us"`
	Actual    string  `parquet:"actual,dict,optional"`
	State     []byte  `parquet:"state,optional,zstd"`
}

// NewDecisionRow captures the decision d taken for snake 0 of state.
func NewDecisionRow(source, gameID string, state *game.GameState, d search.Decision) DecisionRow {
	row := DecisionRow{
		GameID:    gameID,
		Turn:      state.Turn,
		Source:    source,
		Width:     state.Width,
		Height:    state.Height,
		Snakes:    int32(len(state.Snakes)),
		Move:      d.String(),
		Fallback:  d.Fallback,
		Score:     d.Result.Score,
		Depth:     int32(d.Result.Depth),
		Nodes:     d.Result.Nodes,
		ElapsedUs: d.Result.Elapsed.Microseconds(),
	}
	if len(state.Snakes) > 0 {
		me := &state.Snakes[0]
		row.SnakeID = me.Id
		row.Health = me.Health
		row.Length = int32(len(me.Body))
	}
	if raw, err := EncodeState(state); err == nil {
		row.State = raw
	}
	return row
}

// RawGameState is the JSON snapshot stored in DecisionRow.State.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type RawGameState struct {
	Width  int32      `json:"width"`
	Height int32      `json:"height"`
	Turn   int32      `json:"turn"`
	YouID  string     `json:"you_id"`
	Food   []RawPoint `json:"food"`
	Snakes []RawSnake `json:"snakes"`
}

type RawPoint struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type RawSnake struct {
	ID     string     `json:"id"`
	Health int32      `json:"health"`
	Body   []RawPoint `json:"body"`
}

func EncodeState(state *game.GameState) ([]byte, error) {
	if state == nil || state.Width <= 0 || state.Height <= 0 {
		return nil, fmt.Errorf("encode state: %w", game.ErrInvalidState)
	}
	raw := RawGameState{
		Width:  state.Width,
		Height: state.Height,
		Turn:   state.Turn,
		YouID:  state.YouId,
		Food:   toRawPoints(state.Food),
		Snakes: make([]RawSnake, len(state.Snakes)),
	}
	for i, s := range state.Snakes {
		raw.Snakes[i] = RawSnake{ID: s.Id, Health: s.Health, Body: toRawPoints(s.Body)}
	}
	return json.Marshal(raw)
}

// DecodeState is the inverse of EncodeState.
func DecodeState(b []byte) (*game.GameState, error) {
	var raw RawGameState
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	state := &game.GameState{
		Width:  raw.Width,
		Height: raw.Height,
		Turn:   raw.Turn,
		YouId:  raw.YouID,
		Food:   fromRawPoints(raw.Food),
		Snakes: make([]game.Snake, len(raw.Snakes)),
	}
	for i, s := range raw.Snakes {
		state.Snakes[i] = game.Snake{Id: s.ID, Health: s.Health, Body: fromRawPoints(s.Body)}
	}
	return state, nil
}

func toRawPoints(ps []game.Point) []RawPoint {
	out := make([]RawPoint, len(ps))
	for i, p := range ps {
		out[i] = RawPoint{X: p.X, Y: p.Y}
	}
	return out
}

func fromRawPoints(ps []RawPoint) []game.Point {
	out := make([]game.Point, len(ps))
	for i, p := range ps {
		out[i] = game.Point{X: p.X, Y: p.Y}
	}
	return out
}
