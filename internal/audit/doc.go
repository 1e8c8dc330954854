// Package audit defines the audit event model and the asynchronous
// dispatcher that forwards events to a caller-supplied sink. Dispatch never
// blocks engine flows: when the buffer is full events are either dropped
// (counted) or delivered inline, per configuration.
package audit
