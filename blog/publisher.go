package blog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartPublisher runs PublishDue every interval until the returned stop
// function is called. onPublish, when set, is called after a run that
// published at least one post, e.g. to invalidate a Cache.
func (s *Store) StartPublisher(interval time.Duration, log *zap.Logger, onPublish func(n int)) func() {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-ticker.C:
				n, err := s.PublishDue(context.Background(), s.now())
				if err != nil {
					log.Error("publish scheduled posts", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("published scheduled posts", zap.Int("count", n))
					if onPublish != nil {
						onPublish(n)
					}
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
