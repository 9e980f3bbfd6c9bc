package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

func (c *Client) ReadEmails(ctx context.Context) ([]models.EmailSummary, error) {
	var resp struct {
		Emails []models.EmailSummary `json:"emails"`
	}
	if err := c.do(ctx, true, http.MethodGet, "/emails/read", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Emails, nil
}

// GenerateReplies returns one reply per input email, in the same order.
func (c *Client) GenerateReplies(ctx context.Context, emails []models.EmailSummary) ([]string, error) {
	req := struct {
		Emails []models.EmailSummary `json:"emails"`
	}{Emails: emails}

	var resp struct {
		Replies []string `json:"replies"`
	}
	if err := c.do(ctx, true, http.MethodPost, "/emails/generate-replies", req, &resp); err != nil {
		return nil, err
	}
	return resp.Replies, nil
}

func (c *Client) SendReply(ctx context.Context, emailID, content string) error {
	req := struct {
		EmailID      string `json:"email_id"`
		ReplyContent string `json:"reply_content"`
	}{EmailID: emailID, ReplyContent: content}

	var resp ack
	if err := c.do(ctx, true, http.MethodPost, "/emails/send-reply", req, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *Client) DeleteEmail(ctx context.Context, criterion models.DeleteCriterion) error {
	if criterion.IsZero() {
		return errors.New("no deletion criterion given")
	}

	var resp ack
	if err := c.do(ctx, true, http.MethodDelete, "/emails/delete", criterion, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *Client) Categorize(ctx context.Context, count int) (*models.CategorizeResult, error) {
	req := struct {
		Count int `json:"count"`
	}{Count: count}

	var result models.CategorizeResult
	if err := c.do(ctx, true, http.MethodPost, "/emails/categorize", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DailyDigest(ctx context.Context) (*models.Digest, error) {
	var digest models.Digest
	if err := c.do(ctx, true, http.MethodGet, "/emails/daily-digest", nil, &digest); err != nil {
		return nil, err
	}
	return &digest, nil
}

// ParseCommand runs the backend's natural-language classifier on text.
func (c *Client) ParseCommand(ctx context.Context, text string) (*models.ParsedCommand, error) {
	req := struct {
		Command string `json:"command"`
	}{Command: text}

	var resp struct {
		Parsed *models.ParsedCommand `json:"parsed"`
	}
	if err := c.do(ctx, true, http.MethodPost, "/emails/parse-command", req, &resp); err != nil {
		return nil, err
	}
	if resp.Parsed == nil {
		return nil, errors.New("backend returned no parsed command")
	}
	return resp.Parsed, nil
}
