package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name  string
		total int
		want  Category
	}{
		{name: "zero", total: 0, want: CategoryPrincipiante},
		{name: "negative", total: -10, want: CategoryPrincipiante},
		{name: "just below killer", total: 249, want: CategoryPrincipiante},
		{name: "killer lower bound", total: 250, want: CategoryKiller},
		{name: "just below pro", total: 499, want: CategoryKiller},
		{name: "pro lower bound", total: 500, want: CategoryPro},
		{name: "way above pro", total: 10000, want: CategoryPro},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.total))
		})
	}
}

func TestCategorize_monotonic(t *testing.T) {
	prev := Categorize(0)
	for total := 1; total <= 1000; total++ {
		curr := Categorize(total)
		if prev.Above(curr) {
			t.Fatalf("Categorize(%d) = %s is below Categorize(%d) = %s", total, curr, total-1, prev)
		}
		prev = curr
	}
}

func TestCategory_Above(t *testing.T) {
	assert.True(t, CategoryPro.Above(CategoryKiller))
	assert.True(t, CategoryKiller.Above(CategoryPrincipiante))
	assert.False(t, CategoryKiller.Above(CategoryKiller))
	assert.False(t, CategoryPrincipiante.Above(CategoryPro))
}

func Test_rank(t *testing.T) {
	students := []Student{
		{ID: 1, Name: "Ana", TotalPoints: 300, Category: CategoryKiller},
		{ID: 2, Name: "Beto", TotalPoints: 300, Category: CategoryKiller},
		{ID: 3, Name: "Caro", TotalPoints: 120, Category: CategoryPrincipiante},
	}
	entries := rank(students)
	if assert.Len(t, entries, 3) {
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, 1, entries[1].Rank)
		assert.Equal(t, 3, entries[2].Rank)
		assert.Equal(t, "Caro", entries[2].Name)
	}
	assert.Empty(t, rank(nil))
}
