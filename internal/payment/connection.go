package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConnectionReport is the outcome of TestConnection.  Logs lists the
// steps taken in order so the settings screen can show them.
type ConnectionReport struct {
	Success          bool     `json:"success"`
	Logs             []string `json:"logs"`
	AvailableMethods []string `json:"available_methods"`
}

// TestConnection checks the API key shape against the configured mode and
// lists the enabled methods.  It never returns an error; failures are
// reported through Success and Logs.
func (c *Client) TestConnection(ctx context.Context) ConnectionReport {
	r := ConnectionReport{Logs: []string{}, AvailableMethods: []string{}}
	logf := func(format string, args ...interface{}) {
		r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
	}

	key := c.cfg.APIKey
	if key == "" {
		logf("no API key configured")
		return r
	}
	mode := "live"
	if c.cfg.TestMode {
		mode = "test"
	}
	logf("mode: %s", mode)
	switch {
	case strings.HasPrefix(key, "test_"):
		if !c.cfg.TestMode {
			logf("warning: test key used in live mode")
		}
	case strings.HasPrefix(key, "live_"):
		if c.cfg.TestMode {
			logf("warning: live key used in test mode")
		}
	default:
		logf("API key must start with test_ or live_")
		return r
	}

	logf("requesting payment methods from %s", c.cfg.BaseURL)
	methods, err := c.ListMethods(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			logf("API key rejected")
		} else {
			logf("request failed: %v", err)
		}
		return r
	}
	for _, m := range methods {
		r.AvailableMethods = append(r.AvailableMethods, m.ID)
	}
	logf("connection ok, %d methods available", len(methods))
	r.Success = true
	return r
}
