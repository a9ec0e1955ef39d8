package httpretry

import "context"

type waiterChain []Waiter

func (c waiterChain) Wait(ctx context.Context) error {
	for _, w := range c {
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ChainWaiters combines admission checks in order, e.g. a client's local
// window limiter followed by a shared Redis quota. Nil entries are skipped.
func ChainWaiters(ws ...Waiter) Waiter {
	chain := make(waiterChain, 0, len(ws))
	for _, w := range ws {
		if w != nil {
			chain = append(chain, w)
		}
	}
	if len(chain) == 1 {
		return chain[0]
	}
	return chain
}
