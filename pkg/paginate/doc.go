// Package paginate derives fixed-size page positions for reflowable
// documents from asynchronously measured content heights.
//
// The Coordinator is the entry point. It owns the height and position
// caches, drives the measurement scheduler when the document becomes
// ready or the page width changes, re-synthesizes the page table as
// measurements complete, and publishes distinct successive values to
// subscribers:
//
//	c := paginate.New(spine, renderer, paginate.DefaultConfig())
//	defer c.Close()
//
//	updates, cancel := c.SubscribePositions()
//	defer cancel()
//
//	c.DocumentReady()
//	if err := c.SetPageSize(paginate.Size{Width: 400, Height: 600}); err != nil {
//		return err
//	}
//	for res := range updates {
//		// res.Positions is the page table for the active size
//	}
//
// All cache mutation, synthesis and publication run on one internal
// goroutine, so measurement results arriving from worker threads never
// race with reads. Synthesize itself is a pure function and may be
// called directly for one-off derivations.
package paginate
