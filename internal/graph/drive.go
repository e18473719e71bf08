package graph

import (
	"context"
	"net/url"
	"strings"
)

// GetFileText reads a text file from the account's OneDrive by path
// (e.g. "ObsidianVault/Tasks/WeeklyPlan.md"). Returns an APIError with a
// 404 status when the file does not exist; use IsNotFound to test for it.
func (c *Client) GetFileText(ctx context.Context, path string) (string, error) {
	data, err := c.request(ctx, "GET", c.drivePath(path)+":/content", nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PutFileText writes a text file to OneDrive, creating or overwriting it.
func (c *Client) PutFileText(ctx context.Context, path, content string) error {
	_, err := c.request(ctx, "PUT", c.drivePath(path)+":/content", []byte(content))
	return err
}

// drivePath builds the drive item path segment for a vault-relative path.
func (c *Client) drivePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.userPath("/drive/root:/" + strings.Join(segments, "/"))
}
