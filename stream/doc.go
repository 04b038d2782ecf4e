// Package stream provides the in-process update Hub.
//
// A Hub fans research updates out to registered callbacks and channel
// subscriptions. Delivery is at-most-once: nothing is replayed to late
// subscribers, and a channel subscription whose buffer is full drops the
// update. The Hub is the Update Subscriber used with in-process producers
// (store/memory) and the sink network transports publish into.
package stream
