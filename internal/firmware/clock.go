package firmware

import "github.com/me/tickos/internal/board"

// TickClock reads the kernel tick of a board attached after the clock was
// handed to a logger. It reads zero until then.
type TickClock struct {
	board *board.Board
}

// Attach binds the clock to b.
func (c *TickClock) Attach(b *board.Board) { c.board = b }

// Now returns the current tick.
func (c *TickClock) Now() uint32 {
	if c.board == nil {
		return 0
	}
	return c.board.Kernel().Now()
}
