package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// ErrRequestFailed wraps the error message of a failed site request.
var ErrRequestFailed = errors.New("daemon rejected request")

// SiteList edits the daemon's site list over the control socket. It has the
// same method set as the local sitelist repository.
type SiteList struct {
	c *Client
}

// Sites returns a SiteList backed by c.
func (c *Client) Sites() *SiteList {
	return &SiteList{c: c}
}

// List returns the configured specifiers.
func (s *SiteList) List(ctx context.Context) ([]string, error) {
	return s.do(ctx, domain.ControlRequest{Type: domain.RequestSitesList})
}

// Add appends specifiers and returns the new list.
func (s *SiteList) Add(ctx context.Context, specifiers ...string) ([]string, error) {
	return s.do(ctx, domain.ControlRequest{Type: domain.RequestSitesAdd, Sites: specifiers})
}

// RemoveAt deletes the entry at index and returns the new list.
func (s *SiteList) RemoveAt(ctx context.Context, index int) ([]string, error) {
	return s.do(ctx, domain.ControlRequest{Type: domain.RequestSitesRemove, Index: index})
}

// Replace overwrites the whole list.
func (s *SiteList) Replace(ctx context.Context, sites []string) error {
	if sites == nil {
		sites = []string{}
	}
	_, err := s.do(ctx, domain.ControlRequest{Type: domain.RequestSitesReplace, Sites: sites})
	return err
}

func (s *SiteList) do(ctx context.Context, req domain.ControlRequest) ([]string, error) {
	resp, err := s.c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}
	if resp.Sites == nil {
		return []string{}, nil
	}
	return resp.Sites, nil
}
