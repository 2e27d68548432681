package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mark is the symbol occupying a board cell.
type Mark byte

const (
	Empty Mark = '_'
	X     Mark = 'X'
	O     Mark = 'O'
)

// DefaultBoardSize is the side length of a freshly started game.
const DefaultBoardSize = 3

// Player reports whether m is one of the two player symbols.
func (m Mark) Player() bool {
	return m == X || m == O
}

// Opponent returns the symbol used by the other player. Anything other than X
// (including an unassigned mark) is answered with X.
func (m Mark) Opponent() Mark {
	if m == X {
		return O
	}
	return X
}

func (m Mark) String() string {
	if m == 0 {
		return string(Empty)
	}
	return string(rune(m))
}

func (m Mark) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mark) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("mark must be a string: %w", err)
	}
	if len(s) != 1 || !Mark(s[0]).Player() {
		return fmt.Errorf("%q is not a player mark", s)
	}
	*m = Mark(s[0])
	return nil
}

// Board is a snapshot of the playing grid, indexed [row][column].
type Board [][]Mark

// NewBoard returns an empty size x size board.
func NewBoard(size int) Board {
	b := make(Board, size)
	for i := range b {
		b[i] = make([]Mark, size)
		for j := range b[i] {
			b[i][j] = Empty
		}
	}
	return b
}

// ParseBoard builds a board from one string per row, using X, O and _ for
// the cell contents.
func ParseBoard(rows ...string) (Board, error) {
	b := make(Board, len(rows))
	for i, row := range rows {
		b[i] = make([]Mark, len(row))
		for j := 0; j < len(row); j++ {
			switch c := Mark(row[j]); c {
			case X, O, Empty:
				b[i][j] = c
			default:
				return nil, fmt.Errorf("row %d column %d: invalid cell %q", i, j, row[j])
			}
		}
	}
	return b, nil
}

// Count returns the number of cells holding X and O respectively.
func (b Board) Count() (x, o int) {
	for _, row := range b {
		for _, cell := range row {
			switch cell {
			case X:
				x++
			case O:
				o++
			}
		}
	}
	return x, o
}

// Locate converts a cell index into row and column. ok is false when the
// location falls outside the board.
func (b Board) Locate(location int) (row, col int, ok bool) {
	if location < 0 {
		return 0, 0, false
	}
	for i, r := range b {
		if location < len(r) {
			return i, location, true
		}
		location -= len(r)
	}
	return 0, 0, false
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	c := make(Board, len(b))
	for i, row := range b {
		c[i] = append([]Mark(nil), row...)
	}
	return c
}

// Rows renders each row as a string of cell symbols.
func (b Board) Rows() []string {
	rows := make([]string, len(b))
	for i, row := range b {
		var sb strings.Builder
		for _, cell := range row {
			sb.WriteString(cell.String())
		}
		rows[i] = sb.String()
	}
	return rows
}

func (b Board) String() string {
	return strings.Join(b.Rows(), "/")
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Rows())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows []string
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("board must be a list of rows: %w", err)
	}
	if rows == nil {
		*b = nil
		return nil
	}
	parsed, err := ParseBoard(rows...)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
