package courses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize}, NewPage(0, 0))
	assert.Equal(t, Page{Number: 3, Size: MaxPageSize}, NewPage(3, 1000))
	assert.Equal(t, 20, NewPage(3, 10).Offset())
}

func TestNewPageResult(t *testing.T) {
	r := NewPageResult([]int{1, 2}, NewPage(1, 2), 5)
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.False(t, r.HasPrevious)

	last := NewPageResult([]int{5}, NewPage(3, 2), 5)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrevious)

	empty := NewPageResult[int](nil, NewPage(1, 10), 0)
	assert.NotNil(t, empty.Content)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
}
