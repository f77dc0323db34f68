package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridSeatNumbers(t *testing.T) {
	got := gridSeatNumbers(2, 3)
	assert.Equal(t, []string{"A1", "A2", "A3", "B1", "B2", "B3"}, got)
}

func TestRowLabelWrapsPastZ(t *testing.T) {
	assert.Equal(t, "A", rowLabel(0))
	assert.Equal(t, "Z", rowLabel(25))
	assert.Equal(t, "AA", rowLabel(26))
	assert.Equal(t, "AB", rowLabel(27))
	assert.Equal(t, "", rowLabel(-1))
}
