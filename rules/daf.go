//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
// They encode conventions of this repository that vet and staticcheck do not know about.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// EnhancedErrorCategory detects enhanced errors built without a category.
// Uncategorized errors are reported to telemetry as "generic" and cannot be
// matched with errors.IsCategory.
//
//	errors.New(err).Component("daf").Build()                                    // flagged
//	errors.New(err).Component("daf").Category(errors.CategoryAudio).Build()     // ok
func EnhancedErrorCategory(m dsl.Matcher) {
	m.Import("github.com/leadme/daf/internal/errors")

	m.Match(
		`errors.New($err).Component($c).Build()`,
		`errors.Newf($*_).Component($c).Build()`,
		`errors.New($err).Component($c).Context($*_).Build()`,
		`errors.Newf($*_).Component($c).Context($*_).Build()`,
	).
		Report("enhanced error for component $c has no Category")
}

// WaitGroupGo detects the Add/Done goroutine pattern that wg.Go replaces.
//
//	wg.Add(1)
//	go func() { defer wg.Done(); work() }()
//
// becomes
//
//	wg.Go(func() { work() })
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("sync.WaitGroup") || m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of Add(1) with a deferred Done").
		Suggest("$wg.Go(func() { $body })")
}

// TestingContext detects context.Background() or context.TODO() in tests.
// t.Context() is cancelled when the test ends, so goroutines started with it
// do not outlive the test and trip goleak.
func TestingContext(m dsl.Matcher) {
	m.Match(`context.Background()`, `context.TODO()`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests instead of $$")
}

// DeviceErrorIgnored detects discarded errors from device Stop and Close.
// Teardown failures must at least be logged so a leaked device is visible.
func DeviceErrorIgnored(m dsl.Matcher) {
	m.Import("github.com/leadme/daf/internal/daf")

	m.Match(`_ = $d.Close()`, `_ = $d.Stop()`).
		Where(m["d"].Type.Implements("daf.Device")).
		Report("log the error from $d teardown instead of discarding it")
}

// SleepInLoop detects polling loops built on time.Sleep. Use a ticker or
// timer with a select on the context so the loop can be cancelled.
func SleepInLoop(m dsl.Matcher) {
	m.Match(`for { $*_; time.Sleep($d); $*_ }`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report("use a time.Ticker with a context select instead of time.Sleep in a loop")
}
