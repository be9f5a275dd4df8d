// Package audit is the public entry point for the tamper-evident audit
// trail: a global writer plus small helpers for the COSE sign/verify
// event types callers actually emit.
package audit

import (
	"fmt"
	"sync"

	"github.com/qcose/qcose/internal/audit"
)

// Re-exported so callers only need to import this package.
type (
	Event     = audit.Event
	EventType = audit.EventType
	Result    = audit.Result
	Actor     = audit.Actor
	Object    = audit.Object
	Context   = audit.Context
	Writer    = audit.Writer
	NopWriter = audit.NopWriter
)

const (
	EventCOSESign    = audit.EventCOSESign
	EventCOSEVerify  = audit.EventCOSEVerify
	EventKeyAccessed = audit.EventKeyAccessed
	EventAuthFailed  = audit.EventAuthFailed

	ResultSuccess = audit.ResultSuccess
	ResultFailure = audit.ResultFailure
)

// NewEvent creates a new audit event with current timestamp and actor info.
func NewEvent(eventType EventType, result Result) *Event {
	return audit.NewEvent(eventType, result)
}

var (
	globalWriter Writer = NopWriter{}
	globalMu     sync.RWMutex
	enabled      bool
)

// Init initializes the global audit logger with the given writer. Must be
// called before any audit events are logged.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if w == nil {
		globalWriter = NopWriter{}
		enabled = false
		return nil
	}

	globalWriter = w
	enabled = true
	return nil
}

// InitFile initializes the global audit logger with a file writer. This is
// a convenience function for the common case.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}

	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}

	return Init(w)
}

// Close closes the global audit writer. Should be called when the
// application exits.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWriter != nil {
		err := globalWriter.Close()
		globalWriter = NopWriter{}
		enabled = false
		return err
	}
	return nil
}

// Enabled returns whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes an audit event to the global writer.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()

	return w.Write(event)
}

// MustLog writes an audit event and returns an error suitable for failing
// the parent operation if audit logging fails.
//
//	if err := audit.MustLog(event); err != nil {
//	    return nil, err // Operation fails if audit fails
//	}
func MustLog(event *Event) error {
	if err := Log(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

// LogSign logs a COSE sign operation.
func LogSign(msgType, algorithm, kidHex, path string, detached, success bool) error {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}

	event := NewEvent(EventCOSESign, result).
		WithObject(Object{Type: "message", Path: path}).
		WithContext(Context{
			MessageType: msgType,
			Algorithm:   algorithm,
			KeyID:       kidHex,
			Detached:    detached,
		})

	return MustLog(event)
}

// LogVerify logs a COSE verify operation.
func LogVerify(msgType, algorithm, kidHex, path string, detached, success bool, reason string) error {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}

	event := NewEvent(EventCOSEVerify, result).
		WithObject(Object{Type: "message", Path: path}).
		WithContext(Context{
			MessageType: msgType,
			Algorithm:   algorithm,
			KeyID:       kidHex,
			Detached:    detached,
			Reason:      reason,
		})

	return MustLog(event)
}

// LogKeyAccessed logs a signer key being loaded for use.
func LogKeyAccessed(path string, success bool, reason string) error {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}

	event := NewEvent(EventKeyAccessed, result).
		WithObject(Object{Type: "key", Path: path}).
		WithContext(Context{Reason: reason})

	return MustLog(event)
}

// LogAuthFailed logs a PKCS#11 login or key-lookup failure.
func LogAuthFailed(path, reason string) error {
	event := NewEvent(EventAuthFailed, ResultFailure).
		WithObject(Object{Type: "key", Path: path}).
		WithContext(Context{Reason: reason})

	return MustLog(event)
}
