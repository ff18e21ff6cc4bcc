package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/qrmenu/pkg/sanitizer"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  Owner@PhoThin.VN ": "owner@phothin.vn",
		"chu..quan.@x.vn":     "chu.quan@x.vn",
		"no-at-sign":          "no-at-sign",
		"a@b@c.vn":            "a@b@c.vn",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizer.NormalizeEmail(in), in)
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "o****@phothin.vn", sanitizer.MaskEmail("owner@phothin.vn"))
	assert.Equal(t, "a@x.vn", sanitizer.MaskEmail("a@x.vn"))
	assert.Equal(t, "***", sanitizer.MaskEmail("garbage"))
}
