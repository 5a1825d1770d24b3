package selfplay

import (
	"fmt"
	"strings"

	"github.com/brensch/minisnek/game"
)

// RenderBoard draws state with the top row first. Our snake (YouId) is O/o,
// other snakes S/s, food F.
func RenderBoard(state *game.GameState) string {
	grid := make([][]byte, state.Height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", int(state.Width)))
	}

	for _, f := range state.Food {
		if state.InBounds(f) {
			grid[f.Y][f.X] = 'F'
		}
	}

	for _, s := range state.Snakes {
		body, head := byte('s'), byte('S')
		if s.Id == state.YouId {
			body, head = 'o', 'O'
		}
		// Tail first so a stacked or overlapping head stays visible.
		for i := len(s.Body) - 1; i >= 0; i-- {
			p := s.Body[i]
			if !state.InBounds(p) {
				continue
			}
			if i == 0 {
				grid[p.Y][p.X] = head
			} else {
				grid[p.Y][p.X] = body
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "turn %d\n", state.Turn)
	for y := state.Height - 1; y >= 0; y-- {
		sb.Write(grid[y])
		sb.WriteByte('\n')
	}
	return sb.String()
}
