package events

import (
	"time"

	"github.com/moby/pubsub"
)

// DefaultPublishTimeout bounds how long Publish waits on a slow subscriber.
const DefaultPublishTimeout = 100 * time.Millisecond

// Bus is a Publisher fanning out to channel subscribers.
type Bus struct {
	pub *pubsub.Publisher
}

// NewBus creates a bus. timeout bounds each delivery to a subscriber whose
// buffer of size buffer is full; the event is dropped for that subscriber
// after it.
func NewBus(timeout time.Duration, buffer int) *Bus {
	return &Bus{pub: pubsub.NewPublisher(timeout, buffer)}
}

// Publish sends v to every subscriber whose topic accepts it.
func (b *Bus) Publish(v any) {
	b.pub.Publish(v)
}

// Subscribe returns a channel receiving every event.
func (b *Bus) Subscribe() chan interface{} {
	return b.pub.Subscribe()
}

// SubscribeSessionClosed returns a channel receiving only SessionClosed events.
func (b *Bus) SubscribeSessionClosed() chan interface{} {
	return b.pub.SubscribeTopic(func(v interface{}) bool {
		_, ok := v.(SessionClosed)
		return ok
	})
}

// SubscribeForceUpdate returns a channel receiving only ForceUpdateRequired events.
func (b *Bus) SubscribeForceUpdate() chan interface{} {
	return b.pub.SubscribeTopic(func(v interface{}) bool {
		_, ok := v.(ForceUpdateRequired)
		return ok
	})
}

// Unsubscribe removes ch and closes it.
func (b *Bus) Unsubscribe(ch chan interface{}) {
	b.pub.Evict(ch)
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	return b.pub.Len()
}

// Close closes every subscriber channel.
func (b *Bus) Close() {
	b.pub.Close()
}
