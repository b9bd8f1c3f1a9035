package queue

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

// Options are options for the queue.
type Options struct {
	// URL encodes how we'll connect to the queue (redis address).
	URL string

	// Concurrency is how many tasks one worker process runs at a time.
	// Discovery is CPU and memory heavy, so this defaults to 1; width
	// comes from running more worker processes.
	Concurrency int

	// TLSConfig needed to connect to the queue (optional).
	TLSConfig *tls.Config
}

func (o *Options) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
}

// redisOpt builds the asynq connection options, accepting either a bare
// host:port or a redis:// URL.
func (o *Options) redisOpt() (asynq.RedisClientOpt, error) {
	if strings.Contains(o.URL, "://") {
		opt, err := asynq.ParseRedisURI(o.URL)
		if err != nil {
			return asynq.RedisClientOpt{}, err
		}
		rediss, ok := opt.(asynq.RedisClientOpt)
		if !ok {
			return asynq.RedisClientOpt{}, fmt.Errorf("unsupported redis url %q", o.URL)
		}
		rediss.TLSConfig = o.TLSConfig
		return rediss, nil
	}
	return asynq.RedisClientOpt{Addr: o.URL, TLSConfig: o.TLSConfig}, nil
}
