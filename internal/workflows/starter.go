package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Starter implements ports.ExtractionStarter on a Temporal client.
type Starter struct {
	client    client.Client
	taskQueue string
}

func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// WorkflowID is deterministic per grid generation, so a repeated request
// for the same grid joins the running workflow.
func WorkflowID(sessionID string, generation int64) string {
	return fmt.Sprintf("extract-%s-%d", sessionID, generation)
}

// StartExtraction starts ExtractionWorkflow and returns its workflow id.
func (s *Starter) StartExtraction(ctx context.Context, sessionID string, generation int64) (string, error) {
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(sessionID, generation),
		TaskQueue: s.taskQueue,
	}, ExtractionWorkflow, ExtractionInput{SessionID: sessionID, Generation: generation})
	if err != nil {
		return "", err
	}
	return run.GetID(), nil
}
