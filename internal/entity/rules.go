package entity

// HasWin reports whether any full row, any full column or either main diagonal
// consists entirely of mark.
func HasWin(board *Board, mark Cell) bool {
	if mark == Empty {
		return false
	}

	n := board.size

	for row := 0; row < n; row++ {
		if lineOf(board, mark, row, 0, 0, 1) {
			return true
		}
	}

	for col := 0; col < n; col++ {
		if lineOf(board, mark, 0, col, 1, 0) {
			return true
		}
	}

	return lineOf(board, mark, 0, 0, 1, 1) || lineOf(board, mark, 0, n-1, 1, -1)
}

// lineOf walks n cells from (row, col) in direction (dRow, dCol).
func lineOf(board *Board, mark Cell, row, col, dRow, dCol int) bool {
	for i := 0; i < board.size; i++ {
		if board.at(row+i*dRow, col+i*dCol) != mark {
			return false
		}
	}

	return true
}

// AvailableMoves lists every empty cell in row-major order.
func AvailableMoves(board *Board) []Move {
	moves := make([]Move, 0, len(board.cells)-board.Occupied())

	for row := 0; row < board.size; row++ {
		for col := 0; col < board.size; col++ {
			if board.at(row, col) == Empty {
				moves = append(moves, Move{Row: row, Col: col})
			}
		}
	}

	return moves
}

// WinsWith reports whether placing mark at move would complete a line. The board is left
// unchanged.
func WinsWith(board *Board, move Move, mark Cell) bool {
	if err := board.Place(move.Row, move.Col, mark); err != nil {
		return false
	}
	defer board.clear(move.Row, move.Col)

	return HasWin(board, mark)
}
