// Package events carries the one-shot notifications the pipeline raises to
// the rest of the app: the session was closed, or the server demands an
// app update. Delivery goes through a moby/pubsub publisher so any number of
// screens can listen without the pipeline knowing about them.
//
//	bus := events.NewBus(events.DefaultPublishTimeout, 16)
//	defer bus.Close()
//
//	closed := bus.SubscribeSessionClosed()
//	go func() {
//	    for v := range closed {
//	        ev := v.(events.SessionClosed)
//	        showLogin(ev.Reason)
//	    }
//	}()
package events
