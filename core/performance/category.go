package performance

// Category is the performance tier derived from a student's total points.
type Category string

const (
	CategoryPrincipiante Category = "principiante"
	CategoryKiller       Category = "killer"
	CategoryPro          Category = "pro"
)

// category thresholds (inclusive lower bounds)
const (
	KillerThreshold = 250
	ProThreshold    = 500
)

// Categorize maps a points total to its Category.
func Categorize(total int) Category {
	switch {
	case total >= ProThreshold:
		return CategoryPro
	case total >= KillerThreshold:
		return CategoryKiller
	default:
		return CategoryPrincipiante
	}
}

func (c Category) rank() int {
	switch c {
	case CategoryPro:
		return 2
	case CategoryKiller:
		return 1
	}
	return 0
}

// Above reports whether c is a higher tier than other.
func (c Category) Above(other Category) bool {
	return c.rank() > other.rank()
}
