package models

import "time"

// ScheduleTrigger fires a Workflow on a cron schedule.
type ScheduleTrigger struct {
	ID             string
	WorkflowID     string
	CronExpression string // 5-field POSIX
	Timezone       string
	IsActive       bool
	LastRunAt      *time.Time
	NextRunAt      *time.Time
}

// WebhookTrigger fires a Workflow from an inbound HMAC-signed HTTP request.
type WebhookTrigger struct {
	ID              string
	WorkflowID      string
	WebhookPath     string // globally unique among active triggers
	Secret          string // empty means signature verification is skipped
	LastTriggeredAt *time.Time
}
