package assistant

import (
	"context"

	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap"
)

const confirmPhrase = "confirm delete"

// readEmails replaces the cache with the backend's latest emails.
func (c *Conversation) readEmails(ctx context.Context) {
	emails, err := c.backend.ReadEmails(ctx)
	if err != nil {
		c.logger.Warn("Failed to read emails", zap.Error(err))
		c.fail("Failed to read emails", err)
		return
	}

	c.mu.Lock()
	c.emails = append([]models.EmailSummary(nil), emails...)
	c.mu.Unlock()

	c.append(models.RoleSystem, renderEmails(emails))
}

func (c *Conversation) generateReplies(ctx context.Context) {
	emails := c.Emails()
	if len(emails) == 0 {
		c.append(models.RoleSystem, `Please read your emails first using "read emails" command.`)
		return
	}

	replies, err := c.backend.GenerateReplies(ctx, emails)
	if err != nil {
		c.logger.Warn("Failed to generate replies", zap.Error(err))
		c.fail("Failed to generate replies", err)
		return
	}

	n := min(len(replies), len(emails))
	c.mu.Lock()
	for i := 0; i < n && i < len(c.emails); i++ {
		c.emails[i].GeneratedReply = replies[i]
	}
	c.mu.Unlock()

	c.append(models.RoleSystem, renderReplies(emails[:n], replies[:n]))
}

func (c *Conversation) sendReply(ctx context.Context, params models.Parameters) {
	if params.EmailNumber == 0 && params.EmailID == "" {
		c.append(models.RoleSystem, `Please specify which email to reply to (e.g., "send reply to email 1")`)
		return
	}

	email, ok := c.lookup(params)
	if !ok {
		c.append(models.RoleError, invalidNumberText)
		return
	}
	if email.GeneratedReply == "" {
		c.append(models.RoleSystem, `Please generate replies first using "generate replies" command.`)
		return
	}

	if err := c.backend.SendReply(ctx, email.ID, email.GeneratedReply); err != nil {
		c.logger.Warn("Failed to send reply", zap.Error(err), zap.String("email_id", email.ID))
		c.fail("Failed to send reply", err)
		return
	}
	c.append(models.RoleSystem, "✅ Reply sent successfully to "+email.Sender+"!")
}

// requestDelete stages a deletion and asks for confirmation. Nothing is sent
// to the backend until "confirm delete".
func (c *Conversation) requestDelete(params models.Parameters) {
	var criterion models.DeleteCriterion

	switch {
	case params.EmailNumber != 0:
		email, ok := c.lookup(models.Parameters{EmailNumber: params.EmailNumber})
		if !ok {
			c.append(models.RoleError, invalidNumberText)
			return
		}
		criterion = models.ByID(email.ID)
	case params.EmailID != "":
		criterion = models.ByID(params.EmailID)
	case params.Sender != "":
		criterion = models.BySender(params.Sender)
	case params.SubjectKeyword != "":
		criterion = models.BySubjectKeyword(params.SubjectKeyword)
	default:
		c.append(models.RoleSystem, deleteUsageText)
		return
	}

	c.mu.Lock()
	if c.pending != nil {
		c.logger.Info("Replacing pending deletion",
			zap.Any("previous", *c.pending),
			zap.Any("next", criterion))
	}
	c.pending = &criterion
	c.mu.Unlock()

	c.append(models.RoleSystem, renderDeletePrompt(criterion, c.Emails()))
}

// confirmDelete sends the staged deletion, if any, and refreshes the cache.
func (c *Conversation) confirmDelete(ctx context.Context) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		c.append(models.RoleSystem, "There is no pending deletion to confirm.")
		return
	}

	if err := c.backend.DeleteEmail(ctx, *pending); err != nil {
		c.logger.Warn("Failed to delete email", zap.Error(err), zap.Any("criterion", *pending))
		c.fail("Failed to delete email", err)
		return
	}

	c.append(models.RoleSystem, "✅ Email deleted successfully!")
	c.readEmails(ctx)
}

func (c *Conversation) categorize(ctx context.Context, params models.Parameters) {
	count := params.Count
	if count <= 0 {
		count = c.categorizeCount
	}

	result, err := c.backend.Categorize(ctx, count)
	if err != nil {
		c.logger.Warn("Failed to categorize inbox", zap.Error(err))
		c.fail("Failed to categorize inbox", err)
		return
	}
	c.append(models.RoleSystem, renderCategories(result))
}

func (c *Conversation) dailyDigest(ctx context.Context) {
	digest, err := c.backend.DailyDigest(ctx)
	if err != nil {
		c.logger.Warn("Failed to build daily digest", zap.Error(err))
		c.fail("Failed to get daily digest", err)
		return
	}
	c.append(models.RoleSystem, renderDigest(digest))
}

// lookup resolves a 1-based position, or an id, against the cache.
func (c *Conversation) lookup(params models.Parameters) (models.EmailSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if params.EmailNumber != 0 {
		if params.EmailNumber < 1 || params.EmailNumber > len(c.emails) {
			return models.EmailSummary{}, false
		}
		return c.emails[params.EmailNumber-1], true
	}
	for _, e := range c.emails {
		if e.ID == params.EmailID {
			return e, true
		}
	}
	return models.EmailSummary{}, false
}
