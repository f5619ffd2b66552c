// Package metabase refreshes Metabase dashboards by re-running the query of
// every card they contain.
package metabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
)

const sessionHeader = "X-Metabase-Session"

// ErrNoToken is returned when login succeeds without a session id.
var ErrNoToken = errors.New("metabase: authentication succeeded but no token was returned")

// Config holds client configuration.
type Config struct {
	URL            string
	Username       string
	Password       string
	RetryCount     int
	SessionTimeout time.Duration // login and card listing
	QueryTimeout   time.Duration // each card query
}

// Client talks to the Metabase REST API.
type Client struct {
	client *resty.Client
	cfg    Config
}

// New creates a client for cfg.URL.
func New(cfg Config) *Client {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{client: client, cfg: cfg}
}

type sessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

type dashCard struct {
	Card *struct {
		ID int `json:"id"`
	} `json:"card"`
}

// Login opens a session and returns its token.
func (c *Client) Login(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SessionTimeout)
	defer cancel()

	var resp sessionResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(sessionRequest{Username: c.cfg.Username, Password: c.cfg.Password}).
		SetResult(&resp).
		Post("/api/session")
	if err != nil {
		return "", fmt.Errorf("metabase login: %w", err)
	}
	if httpResp.IsError() {
		return "", fmt.Errorf("metabase login: status %d", httpResp.StatusCode())
	}
	if resp.ID == "" {
		return "", ErrNoToken
	}
	return resp.ID, nil
}

// DashboardCards returns the ids of the query cards on a dashboard. Text
// and heading cards carry no query and are left out.
func (c *Client) DashboardCards(ctx context.Context, token string, dashboardID int) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SessionTimeout)
	defer cancel()

	var cards []dashCard
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader(sessionHeader, token).
		SetResult(&cards).
		Get(fmt.Sprintf("/api/dashboard/%d/cards", dashboardID))
	if err != nil {
		return nil, fmt.Errorf("list cards of dashboard %d: %w", dashboardID, err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("list cards of dashboard %d: status %d", dashboardID, httpResp.StatusCode())
	}

	ids := make([]int, 0, len(cards))
	for _, dc := range cards {
		if dc.Card != nil && dc.Card.ID > 0 {
			ids = append(ids, dc.Card.ID)
		}
	}
	return ids, nil
}

// RefreshCard re-runs the query of one card.
func (c *Client) RefreshCard(ctx context.Context, token string, cardID int) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader(sessionHeader, token).
		Post(fmt.Sprintf("/api/card/%d/query", cardID))
	if err != nil {
		return fmt.Errorf("refresh card %d: %w", cardID, err)
	}
	if httpResp.IsError() {
		return fmt.Errorf("refresh card %d: status %d", cardID, httpResp.StatusCode())
	}
	return nil
}

// Summary reports one dashboard refresh.
type Summary struct {
	DashboardID int `json:"dashboard_id"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Dashboard %d refresh complete: %d cards succeeded, %d cards failed", s.DashboardID, s.Succeeded, s.Failed)
}

// RefreshDashboard logs in and refreshes every card of a dashboard. Card
// failures are counted in the summary; only login and listing errors are
// returned.
func (c *Client) RefreshDashboard(ctx context.Context, dashboardID int) (Summary, error) {
	log := logger.FromContext(ctx).WithField("dashboard_id", dashboardID)
	sum := Summary{DashboardID: dashboardID}

	token, err := c.Login(ctx)
	if err != nil {
		return sum, err
	}
	cards, err := c.DashboardCards(ctx, token, dashboardID)
	if err != nil {
		return sum, err
	}
	log.WithField("cards", len(cards)).Info("refreshing dashboard")

	for _, id := range cards {
		if err := c.RefreshCard(ctx, token, id); err != nil {
			log.WithError(err).WithField("card_id", id).Warn("card refresh failed")
			sum.Failed++
			continue
		}
		sum.Succeeded++
	}
	log.Info(sum.String())
	return sum, nil
}
