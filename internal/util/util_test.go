package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vercon/internal/util"
)

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, util.SortedKeys(m))
	assert.Empty(t, util.SortedKeys(map[string]int{}))
}

func TestIsText(t *testing.T) {
	assert.True(t, util.IsText([]byte("plain ascii\n")))
	assert.True(t, util.IsText([]byte("unicode: héllo 世界\n")))
	assert.True(t, util.IsText(nil))
	assert.False(t, util.IsText([]byte{0xc3, 0x28}))
	assert.False(t, util.IsText([]byte{0xff, 0xfe, 0x00}))
}

func TestContentEqual(t *testing.T) {
	assert.True(t, util.ContentEqual([]byte("same"), []byte("same")))
	assert.True(t, util.ContentEqual(nil, []byte{}))
	assert.False(t, util.ContentEqual([]byte("same"), []byte("s4me")))
	assert.False(t, util.ContentEqual([]byte("short"), []byte("longer")))
}
