package entity

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
)

const (
	DefaultBoardSize = 3
	MaxBoardSize     = 16
)

// Cell is the state of a single square.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

// Valid reports whether the cell holds one of the known values.
func (c Cell) Valid() bool {
	return c <= O
}

// Opposite returns the other mark. Empty has no opposite.
func (c Cell) Opposite() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	case Empty:
		return "."
	default:
		return "?"
	}
}

func (c Cell) MarshalText() ([]byte, error) {
	switch c {
	case Empty:
		return []byte(""), nil
	case X, O:
		return []byte(c.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", apperror.ErrInvalidMark, c)
	}
}

func (c *Cell) UnmarshalText(text []byte) error {
	cell, err := ParseCell(string(text))
	if err != nil {
		return err
	}

	*c = cell
	return nil
}

// ParseCell accepts "X", "O" (any case) and "" or "." for an empty cell.
func ParseCell(s string) (Cell, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return X, nil
	case "O":
		return O, nil
	case "", ".":
		return Empty, nil
	default:
		return Empty, fmt.Errorf("%w: %q", apperror.ErrInvalidMark, s)
	}
}

// Move is a board coordinate.
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (m Move) String() string {
	return fmt.Sprintf("(%d,%d)", m.Row, m.Col)
}

// Board is a square grid stored row-major. Its size never changes after construction
// and Place is the only exported way to write to it.
type Board struct {
	size  int
	cells []Cell
}

func NewBoard(size int) (*Board, error) {
	if size < 1 || size > MaxBoardSize {
		return nil, fmt.Errorf("%w: size %d", apperror.ErrInvalidBoard, size)
	}

	return &Board{
		size:  size,
		cells: make([]Cell, size*size),
	}, nil
}

// BoardFromCells rebuilds a board from its row-major cells.
func BoardFromCells(size int, cells []Cell) (*Board, error) {
	board, err := NewBoard(size)
	if err != nil {
		return nil, err
	}

	if len(cells) != size*size {
		return nil, fmt.Errorf("%w: expected %d cells, got %d", apperror.ErrInvalidBoard, size*size, len(cells))
	}

	for i, cell := range cells {
		if !cell.Valid() {
			return nil, fmt.Errorf("%w: cell %d has value %d", apperror.ErrInvalidBoard, i, cell)
		}
	}

	copy(board.cells, cells)

	return board, nil
}

func (that *Board) Size() int {
	return that.size
}

func (that *Board) inBounds(row, col int) bool {
	return row >= 0 && row < that.size && col >= 0 && col < that.size
}

func (that *Board) index(row, col int) int {
	return row*that.size + col
}

// Place puts mark on an empty cell.
func (that *Board) Place(row, col int, mark Cell) error {
	if !that.inBounds(row, col) {
		return fmt.Errorf("%w: (%d,%d) on %dx%d board", apperror.ErrOutOfBounds, row, col, that.size, that.size)
	}

	if mark == Empty || !mark.Valid() {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidMark, mark)
	}

	idx := that.index(row, col)
	if that.cells[idx] != Empty {
		return fmt.Errorf("%w: (%d,%d)", apperror.ErrCellOccupied, row, col)
	}

	that.cells[idx] = mark

	return nil
}

// clear undoes a tentative placement.
func (that *Board) clear(row, col int) {
	that.cells[that.index(row, col)] = Empty
}

func (that *Board) At(row, col int) (Cell, error) {
	if !that.inBounds(row, col) {
		return Empty, fmt.Errorf("%w: (%d,%d) on %dx%d board", apperror.ErrOutOfBounds, row, col, that.size, that.size)
	}

	return that.cells[that.index(row, col)], nil
}

// at is At without the bounds check, for callers that iterate within the board.
func (that *Board) at(row, col int) Cell {
	return that.cells[that.index(row, col)]
}

func (that *Board) IsFull() bool {
	for _, cell := range that.cells {
		if cell == Empty {
			return false
		}
	}

	return true
}

// Occupied returns the number of non-empty cells.
func (that *Board) Occupied() int {
	count := 0
	for _, cell := range that.cells {
		if cell != Empty {
			count++
		}
	}

	return count
}

// Cells returns a row-major copy of the grid.
func (that *Board) Cells() []Cell {
	cells := make([]Cell, len(that.cells))
	copy(cells, that.cells)
	return cells
}

func (that *Board) Clone() *Board {
	return &Board{
		size:  that.size,
		cells: that.Cells(),
	}
}

// Rows renders every row as a slice of cell strings, empty cells as "".
func (that *Board) Rows() [][]string {
	rows := make([][]string, that.size)
	for row := range rows {
		rows[row] = make([]string, that.size)
		for col := range rows[row] {
			if cell := that.at(row, col); cell != Empty {
				rows[row][col] = cell.String()
			}
		}
	}

	return rows
}

func (that *Board) String() string {
	var sb strings.Builder

	sb.WriteString("  ")
	for col := 0; col < that.size; col++ {
		fmt.Fprintf(&sb, " %d", col)
	}
	sb.WriteByte('\n')

	for row := 0; row < that.size; row++ {
		fmt.Fprintf(&sb, "%2d", row)
		for col := 0; col < that.size; col++ {
			sb.WriteByte(' ')
			sb.WriteString(that.at(row, col).String())
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
