package deliverable

import (
	"encoding/json"
	"time"

	"campaignhub-botgateway/pkg/taskname"

	"github.com/hibiken/asynq"
)

// RecordedPayload is consumed by the metrics refresher, which re-fetches the
// post's engagement on its own schedule.
type RecordedPayload struct {
	PostID         string `json:"post_id"`
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id"`
	ExternalID     string `json:"external_id"`
	URL            string `json:"url"`
}

// NewRecordedTask builds the deliverable:recorded task. The task id is derived
// from the post so a repeated enqueue is rejected by the broker.
func NewRecordedTask(p RecordedPayload, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.DeliverableRecorded, payload,
		asynq.Queue(queue),
		asynq.TaskID("deliverable:"+p.PostID),
		asynq.MaxRetry(5),
		asynq.Timeout(60*time.Second),
	), nil
}
