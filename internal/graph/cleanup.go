package graph

import (
	"context"
	"fmt"
	"net/http"
)

// ListTaskIDs returns the tasks of a plan. Tasks without an etag cannot be
// deleted safely and are left out.
func (c *Client) ListTaskIDs(ctx context.Context, planID string) ([]Versioned, error) {
	return c.listVersioned(ctx, "planner/plans/"+escape(planID)+"/tasks")
}

// ListBucketIDs returns the buckets of a plan, skipping any without an etag.
func (c *Client) ListBucketIDs(ctx context.Context, planID string) ([]Versioned, error) {
	return c.listVersioned(ctx, "planner/plans/"+escape(planID)+"/buckets")
}

func (c *Client) listVersioned(ctx context.Context, path string) ([]Versioned, error) {
	all, err := listAll[Versioned](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	out := make([]Versioned, 0, len(all))
	for _, v := range all {
		if v.ETag == "" {
			c.log.Warn().Str("id", v.ID).Str("path", path).Msg("skipping entry without etag")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteTask removes a task if it still has the given etag.
func (c *Client) DeleteTask(ctx context.Context, id, etag string) error {
	return c.deleteVersioned(ctx, "planner/tasks/"+escape(id), etag)
}

// DeleteBucket removes a bucket if it still has the given etag.
func (c *Client) DeleteBucket(ctx context.Context, id, etag string) error {
	return c.deleteVersioned(ctx, "planner/buckets/"+escape(id), etag)
}

func (c *Client) deleteVersioned(ctx context.Context, path, etag string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: path, ifMatch: etag}, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
