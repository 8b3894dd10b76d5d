package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageOptions(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		page       int
		wantLimit  int
		wantOffset int
	}{
		{"first page", 10, 0, 10, 0},
		{"third page", 10, 2, 10, 20},
		{"default limit", 0, 1, DefaultFeedLimit, DefaultFeedLimit},
		{"clamped limit", 500, 1, MaxFeedLimit, MaxFeedLimit},
		{"negative page", 10, -3, 10, 0},
		{"largest exact page", 10, math.MaxInt / 10, 10, (math.MaxInt / 10) * 10},
		{"overflowing page saturates", 10, math.MaxInt/10 + 1, 10, math.MaxInt},
		{"max int page", 7, math.MaxInt, 7, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := PageOptions(tt.limit, tt.page)
			assert.Equal(t, tt.wantLimit, o.Limit)
			assert.Equal(t, tt.wantOffset, o.Offset)
			assert.GreaterOrEqual(t, o.Offset, 0)
		})
	}
}

func TestMaxPage(t *testing.T) {
	assert.Equal(t, math.MaxInt/10, MaxPage(10))
	assert.Equal(t, math.MaxInt/DefaultFeedLimit, MaxPage(0))
}
