package redis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestIsNilError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{redis.Nil, true},
		{fmt.Errorf("get search:g1:abc: %w", redis.Nil), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsNilError(tt.err); got != tt.want {
			t.Errorf("IsNilError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
