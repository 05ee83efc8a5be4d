package syncwait

import (
	"context"

	"github.com/bramblenode/bramble/internal/importer"
	"github.com/bramblenode/bramble/pkg/log"
)

// EventSource is the subset of the import pipeline the bridge consumes.
type EventSource interface {
	Subscribe() (<-chan importer.Event, func())
}

// Bridge translates block import events into registry resolutions. It is
// the sole resolver on the import side and runs as one long-lived
// goroutine for the life of the process. When it stops, in-flight waits
// drain through their timeouts rather than hanging.
type Bridge struct {
	registry *Registry
	source   EventSource
}

func NewBridge(registry *Registry, source EventSource) *Bridge {
	return &Bridge{registry: registry, source: source}
}

// Run consumes the import event stream until the context is cancelled.
// Intended to be called as `go bridge.Run(ctx)` once at startup.
func (b *Bridge) Run(ctx context.Context) {
	events, unsubscribe := b.source.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Sync.Info().Msg("import event bridge stopping")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, rec := range ev.Receipts {
				b.registry.Resolve(rec.TxHash, rec)
			}
		}
	}
}
