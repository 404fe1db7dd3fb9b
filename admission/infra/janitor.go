package infra

import (
	"context"
	"time"
)

// startJanitor roda sweep a cada `every` até o ctx encerrar.
// every <= 0 desliga a limpeza periódica (útil em testes).
func startJanitor(ctx context.Context, every time.Duration, sweep func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sweep()
			}
		}
	}()
}
