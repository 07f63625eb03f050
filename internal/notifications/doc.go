// Package notifications reports finished transcription runs to an optional
// webhook.
//
// When notifications.webhook_url is empty NewService returns a no-op
// implementation, so callers never need to check whether a sink exists.
// Delivery errors are returned to the caller, which logs them; a failed
// notification never fails a run.
package notifications
