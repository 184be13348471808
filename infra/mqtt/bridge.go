package mqtt

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/cad/core/broadcast"
	"github.com/kilianp07/cad/core/logger"
)

// StartBridge republishes every envelope of b as JSON on
// <prefix>/<topic> until ctx is cancelled or b is closed. Each envelope gets
// one publish attempt; failures are logged and counted. The returned channel
// is closed when the bridge stops.
func StartBridge(ctx context.Context, b *broadcast.Broadcaster, cli Client, prefix string, log logger.Logger) <-chan struct{} {
	log = logger.OrNop(log)
	ch := b.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer b.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-ch:
				if !ok {
					return
				}
				forward(cli, prefix, env, log)
			}
		}
	}()
	return done
}

func forward(cli Client, prefix string, env broadcast.Envelope, log logger.Logger) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Errorf("encode %s: %v", env.Topic, err)
		return
	}
	if err := cli.PublishOnce(prefix+"/"+env.Topic, payload); err != nil {
		bridgeFailures.WithLabelValues(env.Topic).Inc()
		log.Warnf("bridge %s: %v", env.Topic, err)
	}
}
