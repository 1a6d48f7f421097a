package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// EventOfferMatched is the channel and event type published per match.
const EventOfferMatched = "EVENT_OFFER_MATCHED"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes matches on a Redis channel for the chat frontend
// to pick up.
type RedisPublisher struct {
	rdb publisher
}

// NewRedisPublisher wraps a Redis client.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) OfferMatched(ctx context.Context, u *model.User, o *model.Offer) error {
	event, err := json.Marshal(map[string]string{
		"type":     EventOfferMatched,
		"chatId":   strconv.FormatInt(u.ChatID, 10),
		"dataId":   o.DataID,
		"link":     o.Link,
		"language": u.Language,
		"text":     Message(o),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", EventOfferMatched, err)
	}
	if err := p.rdb.Publish(ctx, EventOfferMatched, event).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", EventOfferMatched, err)
	}
	return nil
}
