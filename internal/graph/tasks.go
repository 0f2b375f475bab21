package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/juju/retry"
)

// threadSeed is the first post of the discussion thread created for every
// task; planner only links threads that already have a post.
const threadSeed = "Task created by tsync. Migrated comments follow as replies."

// CreateBucket creates a bucket at the end of a plan and returns its id.
func (c *Client) CreateBucket(ctx context.Context, planID, name string) (string, error) {
	var created Versioned
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "planner/buckets",
		body:   bucketRequest{Name: name, PlanID: planID, OrderHint: orderHintStep},
	}, &created)
	if err != nil {
		return "", fmt.Errorf("create bucket %q: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create bucket %q: %w: id", name, ErrMissingField)
	}
	return created.ID, nil
}

// CreateTask creates a task with its own discussion thread. The steps run in
// order and each failure stops the sequence:
//
//  1. resolve the plan's group
//  2. create the thread in that group
//  3. post the task, retried up to the configured attempts
//  4. patch the details, if any
//
// When the details patch fails the task is deleted again so no half-filled
// task is left behind, and an error is returned.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (CreatedTask, error) {
	groupID, err := c.planGroup(ctx, t.PlanID)
	if err != nil {
		return CreatedTask{}, err
	}

	title, cut := truncate(t.Title, MaxTitleLength)
	if cut {
		c.log.Info().Ctx(ctx).Str("title", title).Msg("task title truncated")
	}

	threadID, err := c.createThread(ctx, groupID, title)
	if err != nil {
		return CreatedTask{}, err
	}

	task, err := c.postTask(ctx, taskRequest{
		PlanID:               t.PlanID,
		BucketID:             t.BucketID,
		Title:                title,
		ConversationThreadID: threadID,
	})
	if err != nil {
		return CreatedTask{}, err
	}

	created := CreatedTask{TaskID: task.ID, ThreadID: threadID, GroupID: groupID}
	if t.Details.Empty() {
		return created, nil
	}

	if err := c.patchDetails(ctx, task, c.detailsRequest(ctx, t.Details)); err != nil {
		if derr := c.DeleteTask(ctx, task.ID, task.ETag); derr != nil {
			c.log.Error().Ctx(ctx).Err(derr).Str("task_id", task.ID).Msg("cannot remove task after details failure")
			return CreatedTask{}, errors.Join(err, derr)
		}
		c.log.Warn().Ctx(ctx).Str("task_id", task.ID).Msg("task removed after details failure")
		return CreatedTask{}, err
	}

	return created, nil
}

func (c *Client) createThread(ctx context.Context, groupID, topic string) (string, error) {
	var created Versioned
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "groups/" + escape(groupID) + "/threads",
		body:   threadRequest{Topic: topic, Posts: []post{textPost(threadSeed)}},
	}, &created)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create thread: %w: id", ErrMissingField)
	}
	return created.ID, nil
}

func (c *Client) postTask(ctx context.Context, body taskRequest) (taskResponse, error) {
	var task taskResponse

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			task = taskResponse{}
			if err := c.do(ctx, request{method: http.MethodPost, path: "planner/tasks", body: body}, &task); err != nil {
				return err
			}
			if task.ID == "" {
				return fmt.Errorf("%w: id", ErrMissingField)
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			c.log.Warn().Ctx(ctx).Err(err).Int("attempt", attempt).Msg("task post failed")
		},
		Attempts: c.taskAttempts,
		Delay:    c.retryDelay,
		Clock:    c.clock,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return taskResponse{}, fmt.Errorf("create task %q: %w", body.Title, retry.LastError(err))
	}

	return task, nil
}

// detailsRequest builds the wire form of d. Checklist keys are fresh ids and
// order hints grow so items keep their order.
func (c *Client) detailsRequest(ctx context.Context, d TaskDetails) detailsRequest {
	req := detailsRequest{Description: d.Description}

	if len(d.Checklist) > 0 {
		req.Checklist = make(map[string]checklistItem, len(d.Checklist))
		hint := orderHintStep
		for _, item := range d.Checklist {
			title, cut := truncate(item.Title, MaxChecklistTitleLength)
			if cut {
				c.log.Warn().Ctx(ctx).Str("title", title).Msg("checklist item truncated")
			}
			req.Checklist[uuid.NewString()] = checklistItem{
				ODataType: odataChecklistItem,
				IsChecked: item.Checked,
				Title:     title,
				OrderHint: hint,
			}
			hint += orderHintStep
		}
	}

	if len(d.References) > 0 {
		req.References = make(map[string]externalReference, len(d.References))
		for _, ref := range d.References {
			req.References[EncodeReferenceKey(ref.URL)] = externalReference{
				ODataType: odataExternalReference,
				Alias:     ref.Alias,
				Type:      "Other",
			}
		}
	}

	return req
}

// patchDetails applies details to a new task. The details resource carries
// its own etag; the task's create etag is used when it cannot be read.
func (c *Client) patchDetails(ctx context.Context, task taskResponse, body detailsRequest) error {
	path := "planner/tasks/" + escape(task.ID) + "/details"

	etag := task.ETag
	var current Versioned
	if err := c.get(ctx, path, &current); err != nil {
		c.log.Warn().Ctx(ctx).Err(err).Str("task_id", task.ID).Msg("cannot read task details etag")
	} else if current.ETag != "" {
		etag = current.ETag
	}

	err := c.do(ctx, request{
		method:  http.MethodPatch,
		path:    path,
		body:    body,
		ifMatch: etag,
	}, nil)
	if err != nil {
		return fmt.Errorf("patch details of task %s: %w", task.ID, err)
	}
	return nil
}
