package worker

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	JobRunbookGenerate JobType = "runbook.generate"
)

// Message is one unit of work handed to the pool.
type Message struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	Retries   int             `json:"retries"`
}

func NewMessage(jobType JobType, data []byte) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Data:      json.RawMessage(data),
		CreatedAt: time.Now(),
	}
}
