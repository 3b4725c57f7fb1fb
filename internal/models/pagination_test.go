package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Validate(t *testing.T) {
	assert.NoError(t, PageRequest{}.Validate())
	assert.NoError(t, PageRequest{Page: 1, PageSize: 20}.Validate())
	assert.NoError(t, PageRequest{Page: 3, PageSize: MaxPageSize}.Validate())

	for _, req := range []PageRequest{
		{Page: 0, PageSize: 10},
		{Page: 2, PageSize: 0},
		{Page: -1, PageSize: 10},
		{Page: 1, PageSize: MaxPageSize + 1},
	} {
		err := req.Validate()
		assert.True(t, IsValidation(err), "%+v", req)
	}
}

func TestPageRequest_Offset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{}.Offset())
	assert.Equal(t, 0, PageRequest{Page: 1, PageSize: 10}.Offset())
	assert.Equal(t, 40, PageRequest{Page: 3, PageSize: 20}.Offset())
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2, 3}, 23, PageRequest{Page: 2, PageSize: 10})
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 10, page.PageSize)

	all := NewPage([]string{"a", "b"}, 2, PageRequest{})
	assert.Equal(t, 1, all.TotalPages)
	assert.Equal(t, 2, all.PageSize)

	empty := NewPage[int](nil, 0, PageRequest{Page: 1, PageSize: 10})
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}
