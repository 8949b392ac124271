// Package fanout propagates notification events across service instances and
// routes them to live client sessions.
//
// A Bus carries Message envelopes on topics: TopicCreated for every new
// notification, UserTopic(userID) for user-scoped events (read state changes,
// unread-count invalidation), and TopicBroadcast for system-wide announcements.
// NewMemoryBus serves single-instance deployments and tests; NewRedisBus uses
// Redis pub/sub so an event published by one instance reaches the in-app
// sessions held by every other instance.
//
// A Registry tracks the sessions connected to the local instance. The typical
// wiring subscribes once per instance and pumps bus messages into the registry:
//
//	sub, _ := bus.Subscribe(ctx, fanout.TopicCreated, fanout.TopicBroadcast, fanout.TopicUserPattern)
//	go func() {
//		for msg := range sub.Messages() {
//			if msg.UserID != "" {
//				registry.Push(msg.UserID, msg)
//			} else {
//				registry.Broadcast(msg)
//			}
//		}
//	}()
//
// Delivery is at-most-once end to end: Redis pub/sub does not replay, and
// slow sessions drop messages rather than stalling the pump.
package fanout
