package enums

// WebhookEventType is the type string carried by job service callbacks.
// Unknown values are stored verbatim, so there is no parser.
type WebhookEventType string

const (
	WebhookEventJobCompleted WebhookEventType = "job.completed"
	WebhookEventJobHit       WebhookEventType = "job.hit"
	WebhookEventJobProgress  WebhookEventType = "job.progress"
	WebhookEventUnknown      WebhookEventType = "unknown"
)

// String implements fmt.Stringer.
func (t WebhookEventType) String() string {
	return string(t)
}

// IsKnown reports whether the dispatcher has a handler for the type.
func (t WebhookEventType) IsKnown() bool {
	switch t {
	case WebhookEventJobCompleted, WebhookEventJobHit, WebhookEventJobProgress:
		return true
	default:
		return false
	}
}
