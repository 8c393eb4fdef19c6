// Package audit queues security events off the request path.
//
// The Engine decides what to record; a [Dispatcher] hands each [Event] to a
// [Sink] on a background goroutine, either dropping or waiting when its
// buffer is full. Sinks cover channels, JSON lines, the loggo logger and
// fan-out to several of those.
package audit
