//go:build ruleguard

// Package gorules holds ruleguard checks run by gocritic over this module.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TestingContext flags context.Background and context.TODO in tests; use
// t.Context so work started by the test is cancelled when it ends.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx = context.TODO()`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of a background context")

	m.Match(
		`$fn(context.Background(), $*args)`,
		`$fn(context.TODO(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, pass t.Context() instead of a background context")
}

// BenchmarkLoop flags b.N loops; b.Loop keeps setup out of the timed region.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... } instead of for range $b.N").
		Suggest("for $b.Loop() { $body }")

	m.Match(
		`for $i := 0; $i < $b.N; $i++ { $*body }`,
		`for $i := range $b.N { $*body }`,
	).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }; declare $i separately if the body needs it")
}

// NaNLiteral flags hand-built NaN values in tests.
func NaNLiteral(m dsl.Matcher) {
	m.Match(`float32(math.Inf(1) - math.Inf(1))`, `math.Inf(1) - math.Inf(1)`).
		Report("use math.NaN()")
}
