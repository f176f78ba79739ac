package coupons_test

import (
	"regexp"
	"testing"

	"certipanel/coupons"

	"github.com/stretchr/testify/assert"
)

func TestNewCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^Certify-[0-9a-f]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		code := coupons.NewCode()
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
