package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// UploadFile stores r in the drive of the plan's group under
// tsync/<random id>/<filename> and returns the item's web URL. The random
// directory keeps same-named attachments apart.
func (c *Client) UploadFile(ctx context.Context, planID, filename string, r io.ReadSeeker) (string, error) {
	p, ok := c.lookupPlan(planID)
	if !ok {
		c.log.Error().Ctx(ctx).Str("plan_id", planID).Msg("upload to unknown plan")
		return "", fmt.Errorf("upload %s: %w: %s", filename, ErrUnknownPlan, planID)
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return "", fmt.Errorf("size %s: %w", filename, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind %s: %w", filename, err)
	}

	path := fmt.Sprintf("drives/%s/root:/tsync/%s/%s:/content",
		escape(p.DriveID), uuid.NewString(), escape(filename))

	var item driveItem
	err = c.do(ctx, request{
		method:      http.MethodPut,
		path:        path,
		raw:         r,
		length:      size,
		contentType: "application/octet-stream",
	}, &item)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}

	if item.WebURL == "" {
		c.log.Error().Ctx(ctx).Str("file", filename).Str("item_id", item.ID).Msg("upload response has no webUrl")
		return "", fmt.Errorf("upload %s: %w: webUrl", filename, ErrMissingField)
	}

	return item.WebURL, nil
}
