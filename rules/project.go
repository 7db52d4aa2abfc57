//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StdlibLogging flags the standard log package outside main; packages log
// through their module logger from internal/logger.
func StdlibLogging(m dsl.Matcher) {
	m.Import("log")
	m.Match(
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Print($*_)`,
		`log.Fatalf($*_)`,
		`log.Fatal($*_)`,
	).
		Where(!m.File().PkgPath.Matches(`^github\.com/gardenlab/pestnet-go$`)).
		Report("use the package logger (GetLogger()) instead of the standard log package")
}

// EnhancedErrorBuild flags builders that are never finished; an unbuilt
// ErrorBuilder is neither categorised nor reported.
func EnhancedErrorBuild(m dsl.Matcher) {
	m.Import("github.com/gardenlab/pestnet-go/internal/errors")
	m.Match(`return errors.New($err).Component($c).Category($cat)`).
		Report("finish the error builder with .Build()")
}

// ClassifierPublish flags direct writes to a Handle's classifier; publish
// once through Handle.Set.
func ClassifierPublish(m dsl.Matcher) {
	m.Match(`$h.p.Store($_)`).
		Where(m["h"].Type.Is("*pestnet.Handle") || m["h"].Type.Is("pestnet.Handle")).
		Report("publish classifiers with Handle.Set")
}

// SeverityThresholds flags confidence bands compared inline; use
// pestnet.SeverityLevel so the bands stay in one place.
func SeverityThresholds(m dsl.Matcher) {
	m.Match(`if $c >= 0.9 { $*_ } else if $c >= 0.7 { $*_ } else if $c >= 0.5 { $*_ } else { $*_ }`).
		Where(!m.File().PkgPath.Matches(`/internal/pestnet$`)).
		Report("use pestnet.SeverityLevel")
}

// WaitGroupGo suggests sync.WaitGroup.Go over manual Add/Done.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body })").
		Suggest("$wg.Go(func() { $body })")
}
