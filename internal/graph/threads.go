package graph

import (
	"context"
	"fmt"
	"net/http"
)

// PostReply adds a text reply to a group conversation thread. A thread that
// was just created can briefly answer 404; that case is retried once after
// the reply retry delay.
func (c *Client) PostReply(ctx context.Context, groupID, threadID, text string) error {
	r := request{
		method: http.MethodPost,
		path:   "groups/" + escape(groupID) + "/threads/" + escape(threadID) + "/reply",
		body:   replyRequest{Post: textPost(text)},
	}

	err := c.do(ctx, r, nil)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("reply to thread %s: %w", threadID, err)
	}

	c.log.Debug().Ctx(ctx).Str("thread_id", threadID).Msg("thread not visible yet, retrying reply")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.replyRetryDelay):
	}

	if err := c.do(ctx, r, nil); err != nil {
		return fmt.Errorf("reply to thread %s: %w", threadID, err)
	}
	return nil
}
