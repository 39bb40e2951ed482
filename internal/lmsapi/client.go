// Package lmsapi reads enrollments and sections from the LMS REST API.
package lmsapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// pageSize used by the All* walkers.
const walkPageSize = 50

// maxPages bounds a walk against a server that never stops reporting hasNext.
const maxPages = 1000

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lms api: status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the LMS.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// ListEnrollments fetches one page (0-based) of the user's enrollments.
func (c *Client) ListEnrollments(ctx context.Context, token, userID string, page, size int) (Paginated[Enrollment], error) {
	var out GlobalResponse[Paginated[Enrollment]]
	err := c.get(ctx, token, "/enrollments/user/{userId}", map[string]string{"userId": userID}, page, size, &out)
	return out.Data, err
}

// ListSections fetches one page (0-based) of a course's sections.
func (c *Client) ListSections(ctx context.Context, token, courseID string, page, size int) (Paginated[Section], error) {
	var out GlobalResponse[Paginated[Section]]
	err := c.get(ctx, token, "/sections/course/{courseId}", map[string]string{"courseId": courseID}, page, size, &out)
	return out.Data, err
}

func (c *Client) AllEnrollments(ctx context.Context, token, userID string) ([]Enrollment, error) {
	return walk(func(page int) (Paginated[Enrollment], error) {
		return c.ListEnrollments(ctx, token, userID, page, walkPageSize)
	})
}

func (c *Client) AllSections(ctx context.Context, token, courseID string) ([]Section, error) {
	return walk(func(page int) (Paginated[Section], error) {
		return c.ListSections(ctx, token, courseID, page, walkPageSize)
	})
}

func walk[T any](fetch func(page int) (Paginated[T], error)) ([]T, error) {
	var all []T
	for page := 0; page < maxPages; page++ {
		p, err := fetch(page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Content...)
		if !p.HasNext || len(p.Content) == 0 {
			return all, nil
		}
	}
	return nil, fmt.Errorf("lms api: more than %d pages", maxPages)
}

func (c *Client) get(ctx context.Context, token, path string, params map[string]string, page, size int, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParams(params).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("lms api %s: %w", path, err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
