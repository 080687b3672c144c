// Package measure coordinates asynchronous height measurements of
// content units against an external renderer.
//
// Measuring a unit's rendered height at a width is expensive, so the
// package keeps every outcome it has ever obtained and never measures
// the same (unit, width) key twice:
//
//   - Measurer is the contract the renderer adapter implements
//   - HeightCache stores one terminal Outcome per (unit, width) key
//   - Scheduler submits measurement tasks in spine order, bounds
//     concurrent work to a configurable limit, and deduplicates keys
//     that are cached or already submitted
//
// Example usage:
//
//	sched := measure.NewScheduler(renderer, measure.DefaultSchedulerConfig(),
//		cache.Contains, deliver, logger)
//	sched.EnsureMeasured(spine, 400)
//
// The scheduler never writes to the HeightCache itself. Completed
// outcomes are handed to the deliver callback from worker goroutines;
// the owner is expected to funnel them into whatever serialized context
// guards the cache. Failed measurements are terminal: the outcome is
// cached with its error and the key is never retried.
package measure
