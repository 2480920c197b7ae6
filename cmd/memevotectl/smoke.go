package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/memevote/internal/client"
	"github.com/timmy/memevote/internal/logger"
)

type smokeOptions struct {
	baseURL string
	origin  string
	address string
	timeout time.Duration
}

type smokeCheck struct {
	name string
	run  func(ctx context.Context, c *client.Client, opts *smokeOptions) (string, error)
}

var smokeChecks = []smokeCheck{
	{name: "health", run: checkHealth},
	{name: "list memes", run: checkListMemes},
	{name: "eligible addresses", run: checkEligibleAddresses},
	{name: "check eligibility", run: checkEligibility},
	{name: "reject ineligible vote", run: checkIneligibleVote},
	{name: "cors preflight", run: checkPreflight},
	{name: "reject upload without file", run: checkUploadWithoutFile},
}

func (a *app) smokeCommand() *cobra.Command {
	opts := &smokeOptions{}
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run read-only checks against a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSmoke(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:5000", "Server base URL")
	cmd.Flags().StringVar(&opts.origin, "origin", "http://localhost:3000", "Origin used for CORS checks")
	cmd.Flags().StringVar(&opts.address, "address", "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6", "Address used for the eligibility check")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	return cmd
}

func (a *app) runSmoke(ctx context.Context, opts *smokeOptions) error {
	c := client.New(strings.TrimRight(opts.baseURL, "/"), opts.timeout)
	c.SetHeader("Origin", opts.origin)

	failed := 0
	for _, check := range smokeChecks {
		detail, err := check.run(ctx, c, opts)
		entry := a.log.WithFields(logger.Fields{"check": check.name})
		if err != nil {
			failed++
			entry.WithError(err).Error("FAIL")
			continue
		}
		entry.WithField("detail", detail).Info("PASS")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d smoke checks failed", failed, len(smokeChecks))
	}
	a.log.WithField("count", len(smokeChecks)).Info("All smoke checks passed")
	return nil
}

func checkHealth(ctx context.Context, c *client.Client, _ *smokeOptions) (string, error) {
	status, err := c.Health(ctx)
	if err != nil {
		return "", err
	}
	if status != "ok" {
		return "", fmt.Errorf("unexpected status %q", status)
	}
	return status, nil
}

func checkListMemes(ctx context.Context, c *client.Client, _ *smokeOptions) (string, error) {
	memes, err := c.ListMemes(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range memes {
		if m.Votes != len(m.Voters) {
			return "", fmt.Errorf("meme %s has %d votes but %d voters", m.ID, m.Votes, len(m.Voters))
		}
		if strings.HasPrefix(m.ImageURL, "http://") && !isLocalURL(m.ImageURL) {
			return "", fmt.Errorf("meme %s serves a non-https image url %s", m.ID, m.ImageURL)
		}
	}
	return fmt.Sprintf("%d memes", len(memes)), nil
}

func checkEligibleAddresses(ctx context.Context, c *client.Client, _ *smokeOptions) (string, error) {
	doc, err := c.EligibleAddresses(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d addresses", len(doc.EligibleAddresses)), nil
}

func checkEligibility(ctx context.Context, c *client.Client, opts *smokeOptions) (string, error) {
	status, err := c.CheckEligibility(ctx, opts.address)
	if err != nil {
		return "", err
	}
	if status.RemainingVotes < 0 || status.RemainingVotes > status.VoteLimit {
		return "", fmt.Errorf("remaining votes %d outside [0, %d]", status.RemainingVotes, status.VoteLimit)
	}
	return fmt.Sprintf("canVote=%t canCreate=%t remaining=%d", status.CanVote, status.CanCreate, status.RemainingVotes), nil
}

func checkIneligibleVote(ctx context.Context, c *client.Client, _ *smokeOptions) (string, error) {
	memes, err := c.ListMemes(ctx)
	if err != nil {
		return "", err
	}
	memeID := "1"
	if len(memes) > 0 {
		memeID = memes[0].ID
	}

	_, err = c.Vote(ctx, memeID, "0xINVALID_ADDRESS")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		if err == nil {
			return "", errors.New("vote from an unknown address was accepted")
		}
		return "", err
	}
	if apiErr.Status != http.StatusForbidden {
		return "", fmt.Errorf("expected 403, got %d: %s", apiErr.Status, apiErr.Message)
	}
	return apiErr.Message, nil
}

func checkPreflight(ctx context.Context, c *client.Client, opts *smokeOptions) (string, error) {
	code, allow, err := c.Preflight(ctx, "/api/memes", opts.origin)
	if err != nil {
		return "", err
	}
	if code != http.StatusNoContent && code != http.StatusOK {
		return "", fmt.Errorf("preflight returned %d", code)
	}
	if allow != opts.origin && allow != "*" {
		return "", fmt.Errorf("origin %s not allowed (Access-Control-Allow-Origin %q)", opts.origin, allow)
	}
	return allow, nil
}

func checkUploadWithoutFile(ctx context.Context, c *client.Client, _ *smokeOptions) (string, error) {
	_, err := c.UploadImage(ctx, "", nil)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		if err == nil {
			return "", errors.New("upload without a file was accepted")
		}
		return "", err
	}
	if apiErr.Status != http.StatusBadRequest {
		return "", fmt.Errorf("expected 400, got %d: %s", apiErr.Status, apiErr.Message)
	}
	return apiErr.Message, nil
}

func isLocalURL(u string) bool {
	return strings.HasPrefix(u, "http://localhost") || strings.HasPrefix(u, "http://127.0.0.1")
}
