// Package events queues host events and routes them to the correlators on a single goroutine.
package events
