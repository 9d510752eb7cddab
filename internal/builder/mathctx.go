// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"sitegraph/internal/mathexpr"
	"sitegraph/internal/sitespec"
)

// mathContextT aliases mathexpr.Context so callers elsewhere in this
// package don't need to import mathexpr directly.
type mathContextT = mathexpr.Context

// mathContext builds the per-branch numeric context math resolution
// (spec.md §4.2 step 3) evaluates expressions against. Both parameters
// default to zero if they are themselves unresolved math expressions
// that reference each other; such branches should be treated as
// misconfigured by the caller (a branch's own height-to-tip/blade-radius
// values are plain numbers in every known site description).
func mathContext(site *sitespec.Site) mathContextT {
	h, _ := mathexpr.Resolve(site.HeightToTip, mathexpr.NewContext(0, 0))
	r, _ := mathexpr.Resolve(site.BladeRadius, mathexpr.NewContext(0, 0))
	return mathexpr.NewContext(h, r)
}

func resolveExpr(raw string, ctx mathContextT) (float64, bool) {
	return mathexpr.Resolve(raw, ctx)
}
