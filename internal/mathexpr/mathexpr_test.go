// SPDX-License-Identifier: AGPL-3.0-or-later

package mathexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePlainNumber(t *testing.T) {
	ctx := NewContext(120, 55)
	v, ok := Resolve("120", ctx)
	assert.True(t, ok)
	assert.Equal(t, 120.0, v)
}

func TestResolveExpressionOverContext(t *testing.T) {
	ctx := NewContext(120, 55)
	v, ok := Resolve("height_to_tip - blade_radius", ctx)
	assert.True(t, ok)
	assert.Equal(t, 65.0, v)
}

func TestResolveDerivedConstant(t *testing.T) {
	ctx := NewContext(120, 55)
	v, ok := Resolve("tip_clearance", ctx)
	assert.True(t, ok)
	assert.Equal(t, 65.0, v)
}

func TestResolveUnresolvableLeavesUnchanged(t *testing.T) {
	ctx := NewContext(120, 55)
	_, ok := Resolve("not a number or expr !!", ctx)
	assert.False(t, ok)
}

func TestResolveEmptyString(t *testing.T) {
	ctx := NewContext(120, 55)
	_, ok := Resolve("", ctx)
	assert.False(t, ok)
}
