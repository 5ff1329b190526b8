package queryobject

import (
	"github.com/querylab/queryset-go/queryset/queryerr"
)

// Direction is a sort direction suffix: "+" ascending, "-" descending.
type Direction string

const (
	Asc  Direction = "+"
	Desc Direction = "-"
)

// Reversed returns the opposite direction.
func (d Direction) Reversed() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// SortField is one parsed sort token: a dotted field path plus direction.
type SortField struct {
	Path      string
	Direction Direction
}

// Export renders the field back to its token form.
func (f SortField) Export() string {
	return f.Path + string(f.Direction)
}

// ParseSort parses sort tokens. A token is a field path optionally suffixed
// with "+" or "-"; the suffix defaults to ascending. Order matters.
func ParseSort(tokens []string) ([]SortField, error) {
	fields := make([]SortField, 0, len(tokens))
	for _, token := range tokens {
		if token == "" || token == "+" || token == "-" {
			return nil, &queryerr.QueryObjectError{Reason: "empty sort token"}
		}
		direction := Asc
		switch token[len(token)-1] {
		case '+':
			token = token[:len(token)-1]
		case '-':
			direction = Desc
			token = token[:len(token)-1]
		}
		fields = append(fields, SortField{Path: token, Direction: direction})
	}
	return fields, nil
}
