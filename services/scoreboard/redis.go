package scoreboardsvc

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/pensamiento/core/scoreboard"
)

const (
	keyPrefix     = "scoreboard:activity:"
	channelPrefix = "scoreboard:live:"
)

// RedisPublisher keeps the recent events of an activity in a capped list and broadcasts every
// event on the activity's pub/sub channel.
type RedisPublisher struct {
	client *redis.Client
	size   int
}

var _ scoreboard.Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(ctx context.Context, url string, size int) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opt)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	if size <= 0 {
		size = scoreboard.DefaultRecentSize
	}
	return &RedisPublisher{client: client, size: size}, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func key(activityID int) string     { return keyPrefix + strconv.Itoa(activityID) }
func channel(activityID int) string { return channelPrefix + strconv.Itoa(activityID) }

func (p *RedisPublisher) Publish(ctx context.Context, evt scoreboard.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding scoreboard event")
	}

	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, key(evt.ActivityID), payload)
	pipe.LTrim(ctx, key(evt.ActivityID), 0, int64(p.size-1))
	pipe.Publish(ctx, channel(evt.ActivityID), payload)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "publishing scoreboard event")
	}
	return nil
}

func (p *RedisPublisher) Recent(ctx context.Context, activityID, limit int) ([]scoreboard.Event, error) {
	if limit <= 0 || limit > p.size {
		limit = p.size
	}
	values, err := p.client.LRange(ctx, key(activityID), 0, int64(limit-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "reading scoreboard events")
	}

	events := make([]scoreboard.Event, 0, len(values))
	for _, v := range values {
		var evt scoreboard.Event
		if err = json.Unmarshal([]byte(v), &evt); err != nil {
			return nil, errors.Wrap(err, "decoding scoreboard event")
		}
		events = append(events, evt)
	}
	return events, nil
}

// Subscribe streams the events of an activity until ctx is done.
func (p *RedisPublisher) Subscribe(ctx context.Context, activityID int) (<-chan scoreboard.Event, error) {
	sub := p.client.Subscribe(ctx, channel(activityID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "subscribing to scoreboard")
	}

	out := make(chan scoreboard.Event)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt scoreboard.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
