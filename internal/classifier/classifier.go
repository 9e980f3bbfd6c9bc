package classifier

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

// Classifier turns a user utterance into a command.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.ParsedCommand, error)
}

// RuleConfidence is the confidence the keyword rules report for a match.
const RuleConfidence = 0.6

var (
	emailNumberPattern = regexp.MustCompile(`(?i)email\s*#?(\d+)`)
	fromPattern        = regexp.MustCompile(`(?i)from\s+(.+)$`)
	subjectPattern     = regexp.MustCompile(`(?i)subject\s+(.+)$`)
)

// RuleClassifier matches keywords in a fixed priority order. It never fails
// and needs no network.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(_ context.Context, text string) (models.ParsedCommand, error) {
	lower := strings.ToLower(text)
	cmd := models.ParsedCommand{Confidence: RuleConfidence}

	switch {
	case containsAny(lower, "read", "show", "fetch"):
		cmd.Action = models.ActionReadEmails
	case containsAny(lower, "categor", "group"):
		cmd.Action = models.ActionCategorizeInbox
	case strings.Contains(lower, "digest"):
		cmd.Action = models.ActionDailyDigest
	case strings.Contains(lower, "generate") && strings.Contains(lower, "repl"):
		cmd.Action = models.ActionGenerateReplies
	case strings.Contains(lower, "send") && strings.Contains(lower, "repl"):
		cmd.Action = models.ActionSendReply
		cmd.Parameters.EmailNumber = emailNumber(text)
	case strings.Contains(lower, "delete"):
		cmd.Action = models.ActionDeleteEmail
		cmd.Parameters = deleteParameters(text, lower)
	default:
		return models.ParsedCommand{Action: models.ActionUnknown}, nil
	}

	return cmd, nil
}

// deleteParameters picks the first branch whose keyword is present; a branch
// whose pattern then fails to match yields no parameters.
func deleteParameters(text, lower string) models.Parameters {
	var params models.Parameters

	if n := emailNumber(text); n != 0 {
		params.EmailNumber = n
	} else if strings.Contains(lower, "from") {
		if m := fromPattern.FindStringSubmatch(text); m != nil {
			params.Sender = strings.TrimSpace(m[1])
		}
	} else if strings.Contains(lower, "subject") {
		if m := subjectPattern.FindStringSubmatch(text); m != nil {
			params.SubjectKeyword = strings.TrimSpace(m[1])
		}
	}
	return params
}

// emailNumber returns the position named by "email #N", 0 when there is none
// and -1 when one is named but can never be valid ("email 0", overflow).
func emailNumber(text string) int {
	m := emailNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return -1
	}
	return n
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
