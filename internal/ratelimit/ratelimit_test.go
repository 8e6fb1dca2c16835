package ratelimit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	l := New(Config{})
	assert.Nil(t, l)
	assert.True(t, l.AllowTool("anything"), "nil limiter must allow every call")
	assert.Zero(t, l.Len())
}

func TestLimiter_AllowTool(t *testing.T) {
	l := New(Config{
		ToolsPerSecond: 0.001,
		Burst:          1,
		Tools:          []string{"listUsers", "getDocument"},
	})

	tests := []struct {
		name string
		tool string
		want bool
	}{
		{name: "allow first call", tool: "listUsers", want: true},
		{name: "block immediate second call", tool: "listUsers", want: false},
		{name: "buckets are per tool", tool: "getDocument", want: true},
		{name: "second tool also exhausts", tool: "getDocument", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.AllowTool(tt.tool))
		})
	}
}

func TestLimiter_PerToolOverride(t *testing.T) {
	l := New(Config{
		Burst:   1,
		PerTool: map[string]float64{"askDocuments": 0.001},
		Tools:   []string{"askDocuments", "listUsers"},
	})

	assert.True(t, l.AllowTool("askDocuments"))
	assert.False(t, l.AllowTool("askDocuments"))

	// Tools without an override are unlimited when no default rate is set.
	for i := 0; i < 10; i++ {
		assert.True(t, l.AllowTool("listUsers"))
	}
}

func TestLimiter_UnlistedNamesDoNotAddBuckets(t *testing.T) {
	l := New(Config{
		ToolsPerSecond: 0.001,
		Burst:          1,
		Tools:          []string{"listUsers"},
	})
	before := l.Len()

	for i := 0; i < 10000; i++ {
		l.AllowTool(fmt.Sprintf("made-up-%d", i))
	}

	assert.Equal(t, before, l.Len())
	assert.Equal(t, 2, l.Len(), "listUsers plus the shared fallback")
	assert.True(t, l.AllowTool("listUsers"), "unlisted names must not drain a listed tool's bucket")
}
