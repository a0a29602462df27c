package core

// YearRange bounds a series inclusively. A nil bound is open on that side.
type YearRange struct {
	Start *int
	End   *int
}

// Between is a closed range.
func Between(start, end int) YearRange {
	return YearRange{Start: &start, End: &end}
}

func (r YearRange) Contains(year int) bool {
	if r.Start != nil && year < *r.Start {
		return false
	}
	if r.End != nil && year > *r.End {
		return false
	}
	return true
}
