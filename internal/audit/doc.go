// Package audit delivers session lifecycle events to a caller-supplied sink
// off the request path.
//
// # Components
//
//   - [Sink] is the event consumer interface (channel, JSON writer, no-op).
//   - [Dispatcher] is a buffered async relay. When full it drops info events
//     (if configured) and makes alerts wait; drops are counted per operation.
//   - [Event] is the structured record with a [Severity].
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import pairauth or any sibling internal package.
//   - Carry token values or password material in events.
package audit
