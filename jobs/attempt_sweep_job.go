package jobs

import (
	"context"
	"log"
	"time"
)

type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, batch int) (int, error)
}

// SweepOverdueAttempts closes attempts nobody came back to, so statistics do not wait on a
// lazy trigger. It keeps sweeping while full batches come back.
func SweepOverdueAttempts(ctx context.Context, sweeper OverdueSweeper, batch int) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	total := 0
	for {
		closed, err := sweeper.SweepOverdue(ctx, batch)
		if err != nil {
			log.Printf("🔥 Overdue attempt sweep failed: %v", err)
			return
		}
		total += closed
		if closed < batch || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		log.Printf("✅ Sweep closed %d overdue attempts", total)
	}
}
