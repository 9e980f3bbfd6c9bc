package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Action is the intent extracted from a user utterance. Values match the
// backend's parse-command vocabulary.
type Action string

const (
	ActionReadEmails      Action = "read_emails"
	ActionGenerateReplies Action = "generate_replies"
	ActionSendReply       Action = "send_reply"
	ActionDeleteEmail     Action = "delete_email"
	ActionCategorizeInbox Action = "categorize_inbox"
	ActionDailyDigest     Action = "daily_digest"
	ActionUnknown         Action = "unknown"
)

// Known reports whether a is one of the dispatchable actions.
func (a Action) Known() bool {
	switch a {
	case ActionReadEmails, ActionGenerateReplies, ActionSendReply,
		ActionDeleteEmail, ActionCategorizeInbox, ActionDailyDigest:
		return true
	}
	return false
}

// Parameters holds whatever the classifier pulled out of the utterance.
// EmailNumber is a 1-based display position, zero when absent and negative
// when a position was named that cannot exist.
type Parameters struct {
	EmailNumber    int    `json:"email_number,omitempty"`
	EmailID        string `json:"email_id,omitempty"`
	Sender         string `json:"sender,omitempty"`
	SubjectKeyword string `json:"subject,omitempty"`
	Count          int    `json:"count,omitempty"`
}

// HasTarget reports whether the parameters name an email, by position, id,
// sender or subject.
func (p Parameters) HasTarget() bool {
	return p.EmailNumber != 0 || p.EmailID != "" || p.Sender != "" || p.SubjectKeyword != ""
}

// UnmarshalJSON accepts the loose shape the remote parser returns: email_id
// may be a position ("2", 2) or a real message id, and count may be a string.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	var raw struct {
		EmailNumber    json.Number `json:"email_number"`
		EmailID        any         `json:"email_id"`
		Sender         string      `json:"sender"`
		Subject        string      `json:"subject"`
		SubjectKeyword string      `json:"subject_keyword"`
		Count          any         `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Parameters{
		Sender:         strings.TrimSpace(raw.Sender),
		SubjectKeyword: strings.TrimSpace(raw.Subject),
	}
	if p.SubjectKeyword == "" {
		p.SubjectKeyword = strings.TrimSpace(raw.SubjectKeyword)
	}
	if n, err := raw.EmailNumber.Int64(); err == nil {
		p.EmailNumber = int(n)
	}

	switch v := raw.EmailID.(type) {
	case float64:
		p.EmailNumber = int(v)
	case string:
		v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if n, err := strconv.Atoi(v); err == nil {
			p.EmailNumber = n
		} else {
			p.EmailID = v
		}
	}

	switch v := raw.Count.(type) {
	case float64:
		p.Count = int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			p.Count = n
		}
	}
	return nil
}

// ParsedCommand is the per-turn result of classification. It is never stored.
type ParsedCommand struct {
	Action     Action     `json:"action"`
	Parameters Parameters `json:"parameters"`
	Confidence float64    `json:"confidence"`
}
