package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

type fakePublisher struct {
	channel string
	message []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) OfferMatched(context.Context, *model.User, *model.Offer) error {
	r.calls++
	return r.err
}

func testOffer() *model.Offer {
	o := model.NewOffer("10622405")
	o.Name = "Helles WG-Zimmer"
	o.Address = "Musterstraße 1 10115 Berlin"
	o.TotalRent = "650€"
	o.Link = "https://www.wg-gesucht.de/10622405.html"
	return o
}

func TestMessage(t *testing.T) {
	msg := Message(testOffer())
	for _, want := range []string{"Helles WG-Zimmer", "Musterstraße 1", "650€", "https://www.wg-gesucht.de/10622405.html"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Area:") {
		t.Errorf("Message should omit empty area:\n%s", msg)
	}
}

func TestRedisPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := &RedisPublisher{rdb: pub}
	u := &model.User{ChatID: 42, Language: "en"}

	if err := p.OfferMatched(context.Background(), u, testOffer()); err != nil {
		t.Fatalf("OfferMatched: %v", err)
	}
	if pub.channel != EventOfferMatched {
		t.Errorf("channel = %q, want %q", pub.channel, EventOfferMatched)
	}
	var event map[string]string
	if err := json.Unmarshal(pub.message, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event["chatId"] != "42" || event["dataId"] != "10622405" || event["type"] != EventOfferMatched {
		t.Errorf("event = %v", event)
	}
}

func TestRedisPublisher_Error(t *testing.T) {
	p := &RedisPublisher{rdb: &fakePublisher{err: errors.New("connection refused")}}
	if err := p.OfferMatched(context.Background(), &model.User{ChatID: 1}, testOffer()); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestTelegram(t *testing.T) {
	s := &fakeSender{}
	tg := &Telegram{api: s}
	if err := tg.OfferMatched(context.Background(), &model.User{ChatID: 7}, testOffer()); err != nil {
		t.Fatalf("OfferMatched: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(s.sent))
	}
	if s.sent[0].ChatID != 7 {
		t.Errorf("ChatID = %d, want 7", s.sent[0].ChatID)
	}
}

func TestTelegram_CancelledContext(t *testing.T) {
	s := &fakeSender{}
	tg := &Telegram{api: s}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.OfferMatched(ctx, &model.User{ChatID: 7}, testOffer()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(s.sent) != 0 {
		t.Errorf("sent %d messages after cancel", len(s.sent))
	}
}

func TestMulti_TriesEveryNotifier(t *testing.T) {
	a := &recorder{err: errors.New("down")}
	b := &recorder{}
	err := Multi{a, b}.OfferMatched(context.Background(), &model.User{ChatID: 1}, testOffer())
	if err == nil {
		t.Error("expected joined error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d,%d, want 1,1", a.calls, b.calls)
	}
}
