// Package lms is the learning-management-service capability interface:
// form-encoded web-service calls for course lookup, forum listing, and
// discussion creation. It does not fetch course contents. Treated as an
// external collaborator per the core's scope.
package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the LMS web-service endpoint and token.
type Config struct {
	BaseURL    string // e.g. https://lms.example.edu/webservice/rest/server.php
	Token      string
	HTTPClient *http.Client

	// RequestsPerSecond throttles outbound web-service calls so a retry
	// storm or bulk backfill never floods the LMS. 0 disables throttling.
	RequestsPerSecond rate.Limit
	Burst             int
}

// Course is a minimal LMS course record.
type Course struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullname"`
	ShortName string `json:"shortname"`
}

// Forum is an LMS forum module within a course.
type Forum struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client calls the LMS's form-encoded web service.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New creates an LMS Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &Client{cfg: cfg, logger: logger}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(cfg.RequestsPerSecond, burst)
	}
	return client
}

func (c *Client) call(ctx context.Context, function string, params url.Values, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	form := url.Values{}
	form.Set("wstoken", c.cfg.Token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", "json")
	for k, vs := range params {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lms: %s status %d", function, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CourseByFullName implements §4.5 step 2: core_course_get_courses_by_field(fullname).
func (c *Client) CourseByFullName(ctx context.Context, fullName string) (*Course, error) {
	return c.courseByField(ctx, "fullname", fullName)
}

// CourseByShortName implements §4.5 step 3: same field lookup, shortname.
func (c *Client) CourseByShortName(ctx context.Context, shortName string) (*Course, error) {
	return c.courseByField(ctx, "shortname", shortName)
}

func (c *Client) courseByField(ctx context.Context, field, value string) (*Course, error) {
	params := url.Values{"field": {field}, "value": {value}}
	var payload struct {
		Courses []Course `json:"courses"`
	}
	if err := c.call(ctx, "core_course_get_courses_by_field", params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Courses) == 0 {
		return nil, nil
	}
	return &payload.Courses[0], nil
}

// SearchCourses implements §4.5 step 4: free-text search, caller takes
// the first result.
func (c *Client) SearchCourses(ctx context.Context, text string) ([]Course, error) {
	params := url.Values{"criterianame": {"search"}, "criteriavalue": {text}}
	var payload struct {
		Courses []Course `json:"courses"`
	}
	if err := c.call(ctx, "core_course_search_courses", params, &payload); err != nil {
		return nil, err
	}
	return payload.Courses, nil
}

// ExactNameMatch implements §4.5 step 1: the first free-text search
// result whose fullname equals name exactly, distinct from the
// field-lookup call (which tolerates near matches server-side in some LMS
// deployments). Display names are not compared.
func (c *Client) ExactNameMatch(ctx context.Context, name string) (*Course, error) {
	courses, err := c.SearchCourses(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, course := range courses {
		if course.FullName == name {
			return &course, nil
		}
	}
	return nil, nil
}

// ListForums returns the forum module instances within a course.
func (c *Client) ListForums(ctx context.Context, courseID int64) ([]Forum, error) {
	params := url.Values{"courseids[0]": {strconv.FormatInt(courseID, 10)}}
	var forums []Forum
	if err := c.call(ctx, "mod_forum_get_forums_by_courses", params, &forums); err != nil {
		return nil, err
	}
	return forums, nil
}

// preferredForumNames is §8's forum resolution order, after "Clases Grabadas".
var preferredForumNames = []string{"Anuncios", "Announcements", "News forum"}

// ResolveForumID implements §4.7's forum-id resolution: "Clases Grabadas"
// by name, else one of the announcements-style fallbacks, else the first
// forum the listing API returns.
func ResolveForumID(forums []Forum) (int64, bool) {
	if len(forums) == 0 {
		return 0, false
	}
	for _, f := range forums {
		if f.Name == "Clases Grabadas" {
			return f.ID, true
		}
	}
	for _, name := range preferredForumNames {
		for _, f := range forums {
			if f.Name == name {
				return f.ID, true
			}
		}
	}
	return forums[0].ID, true
}

// PostDiscussion creates a forum discussion with the given subject and
// HTML message body.
func (c *Client) PostDiscussion(ctx context.Context, forumID int64, subject, messageHTML string) error {
	params := url.Values{
		"forumid": {strconv.FormatInt(forumID, 10)},
		"subject": {subject},
		"message": {messageHTML},
	}
	var payload struct {
		DiscussionID int64 `json:"discussionid"`
		Warnings     []struct {
			Message string `json:"message"`
		} `json:"warnings"`
	}
	if err := c.call(ctx, "mod_forum_add_discussion", params, &payload); err != nil {
		return err
	}
	if len(payload.Warnings) > 0 {
		return fmt.Errorf("lms: add discussion warning: %s", payload.Warnings[0].Message)
	}
	return nil
}
