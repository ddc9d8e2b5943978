package grid

// maxExtractRows bounds vertical walks on sheets with runaway
// dimensions.
const maxExtractRows = 1000

// ColumnValue is one extracted cell of a vertical walk.
type ColumnValue struct {
	Row   int
	Value string
}

// ExtractDown collects values walking down a column from startRow until
// the first empty cell, visiting at most maxExtractRows rows.
func (r *SheetReader) ExtractDown(col, startRow int) []ColumnValue {
	var out []ColumnValue
	for i := 0; i < maxExtractRows; i++ {
		row := startRow + i
		v := r.SafeValue(col, row)
		if v == "" {
			break
		}
		out = append(out, ColumnValue{Row: row, Value: v})
	}
	return out
}

// Pair couples an article name with its number.
type Pair struct {
	Name   string
	Number string
}

// PairUp zips names with numbers, padding the shorter side with empty
// strings, and drops exact duplicate pairs keeping first occurrences.
func PairUp(names, numbers []string) []Pair {
	n := len(names)
	if len(numbers) > n {
		n = len(numbers)
	}
	seen := make(map[Pair]struct{}, n)
	out := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		var p Pair
		if i < len(names) {
			p.Name = names[i]
		}
		if i < len(numbers) {
			p.Number = numbers[i]
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
