package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164In(t *testing.T) {
	assert.Equal(t, "+16502530000", NormalizeE164In("(650) 253-0000", ""))
	assert.Equal(t, "+31612345678", NormalizeE164In("06 12345678", "nl"))
	assert.Equal(t, "+31612345678", NormalizeE164In("+31 6 12345678", "US"))
	assert.Equal(t, "not a number", NormalizeE164In("  not a number ", "nl"))
	assert.Equal(t, "", NormalizeE164In("   ", ""))
}
