package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueContent queues a generation task to run after delay and returns the
// task id.
func EnqueueContent(asynqClient *asynq.Client, payload GenerateContentPayload, delay time.Duration) (string, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypeGenerateContent, taskPayload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))

	info, err := asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return "", err
	}

	log.Printf("Task queued: %s (topic %q, publish at %s)", info.ID, payload.Preferences.Topic, payload.ScheduleAt.Format(time.RFC3339))
	return info.ID, nil
}
