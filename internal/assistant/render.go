package assistant

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

const (
	invalidNumberText = "Invalid email number. Please check your email list."

	unknownCommandText = `I didn't understand that command. Try:
• "read emails"
• "generate replies"
• "send reply to email #"
• "delete email #"
• "categorize inbox"
• "daily digest"`

	deleteUsageText = `Please specify how to delete:
• "delete email #2"
• "delete email from sender@example.com"
• "delete email with subject meeting"`

	previewLength  = 100
	categorySample = 3
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

func welcomeText(name string) string {
	greeting := "Hello!"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s!", name)
	}
	return greeting + ` 👋

I'm your AI email assistant. Here's what I can help you with:

📧 "read emails" - Fetch your most recent emails with AI-generated summaries
✍️ "generate replies" - Create AI-powered responses for your emails
📤 "send reply to email #" - Send a generated reply (e.g., "send reply to email 1")
🗑️ "delete email #" - Delete a specific email (e.g., "delete email 2")
🗑️ "delete email from [sender]" - Delete latest email from a sender
🗑️ "delete email with subject [keyword]" - Delete email by subject keyword
🗂️ "categorize inbox" - Group your emails into categories
📰 "daily digest" - Summarize today's email

Just type your command naturally, and I'll handle the rest!`
}

func formatDate(raw string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 2, 2006 3:04 PM")
		}
	}
	return raw
}

func preview(e models.EmailSummary) string {
	if e.Summary != "" {
		return e.Summary
	}
	body := strings.Join(strings.Fields(e.Body), " ")
	if r := []rune(body); len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return body
}

func renderEmails(emails []models.EmailSummary) string {
	if len(emails) == 0 {
		return "📭 Your inbox has no recent emails."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📬 Your %d Most Recent Emails:\n\n", len(emails))
	for i, e := range emails {
		fmt.Fprintf(&b, "Email #%d\n", i+1)
		fmt.Fprintf(&b, "📨 From: %s\n", e.Sender)
		fmt.Fprintf(&b, "📋 Subject: %s\n", e.Subject)
		fmt.Fprintf(&b, "📄 Summary: %s\n", preview(e))
		fmt.Fprintf(&b, "🕐 Date: %s\n\n", formatDate(e.Date))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderReplies(emails []models.EmailSummary, replies []string) string {
	if len(replies) == 0 {
		return "No replies were generated."
	}

	var b strings.Builder
	b.WriteString("✍️ AI-Generated Replies:\n\n")
	for i, reply := range replies {
		fmt.Fprintf(&b, "Reply for Email #%d (%s)\n", i+1, emails[i].Subject)
		fmt.Fprintf(&b, "%s\n\n", reply)
		fmt.Fprintf(&b, "Type \"send reply to email %d\" to send this reply.\n\n", i+1)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDeletePrompt(criterion models.DeleteCriterion, emails []models.EmailSummary) string {
	var target string
	switch {
	case criterion.EmailID != "":
		target = "this email"
		for _, e := range emails {
			if e.ID == criterion.EmailID {
				target = fmt.Sprintf("the email %q from %s", e.Subject, e.Sender)
				break
			}
		}
	case criterion.Sender != "":
		target = "the latest email from " + criterion.Sender
	default:
		target = fmt.Sprintf("the email with subject matching %q", criterion.SubjectKeyword)
	}
	return fmt.Sprintf("⚠️ Are you sure you want to delete %s? Type \"confirm delete\" to proceed.", target)
}

func renderCategories(result *models.CategorizeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗂️ Inbox Categories (%d emails):\n", result.TotalEmails)

	names := make([]string, 0, len(result.Categories))
	for name := range result.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := result.Categories[name]
		fmt.Fprintf(&b, "\n%s: %d\n", name, cat.Count)
		if cat.Count == 0 {
			continue
		}
		if cat.Summary != "" {
			fmt.Fprintf(&b, "%s\n", cat.Summary)
		}

		shown := min(len(cat.Emails), categorySample)
		for _, e := range cat.Emails[:shown] {
			fmt.Fprintf(&b, "• %s - %s\n", e.Sender, e.Subject)
		}
		if rest := cat.Count - shown; rest > 0 && shown > 0 {
			fmt.Fprintf(&b, "...and %d more\n", rest)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDigest(d *models.Digest) string {
	return fmt.Sprintf("📰 Daily Digest (%d emails)\n\n%s", d.EmailCount, d.Digest)
}
