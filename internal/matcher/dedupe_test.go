package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/fmv-cli/internal/model"
)

func TestDeduper(t *testing.T) {
	d := NewDeduper()

	assert.True(t, d.Add(model.ListingSold, "https://ebay.com/itm/1", "ASM 20"))
	assert.False(t, d.Add(model.ListingSold, " https://ebay.com/itm/1 ", "different title"))
	assert.True(t, d.Add(model.ListingActive, "https://ebay.com/itm/1", "ASM 20"), "kind is part of the key")

	assert.True(t, d.Add(model.ListingSold, "", "ASM 20 CGC 9.0"))
	assert.False(t, d.Add(model.ListingSold, "", "  asm 20 cgc 9.0 "))
	assert.False(t, d.Add(model.ListingSold, "", "ASM #20 - CGC 9.0"), "punctuation is not part of the key")

	assert.Equal(t, 3, d.Len())
}
