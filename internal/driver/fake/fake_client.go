// Package fake provides a driver.Client test double recording every
// RemoveExecutor call and returning a scripted last-allocated id.
package fake

import (
	"context"
	"sync"

	"github.com/G-Research/executor-allocator/internal/domain"
)

type Removal struct {
	ExecutorId domain.ExecutorId
	Reason     domain.ExitReason
}

type Client struct {
	mu sync.Mutex

	LastAllocatedExecutorId int
	RetrieveErr             error

	removed []Removal
}

func New() *Client {
	return &Client{}
}

func (c *Client) RetrieveLastAllocatedExecutorId(ctx context.Context) (int, error) {
	if c.RetrieveErr != nil {
		return 0, c.RetrieveErr
	}
	return c.LastAllocatedExecutorId, nil
}

func (c *Client) RemoveExecutor(executorId domain.ExecutorId, reason domain.ExitReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, Removal{ExecutorId: executorId, Reason: reason})
}

func (c *Client) Removed() []Removal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Removal, len(c.removed))
	copy(out, c.removed)
	return out
}
