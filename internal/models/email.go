package models

// EmailSummary is one email of the cache built by the last read.
type EmailSummary struct {
	ID             string `json:"id"`
	Sender         string `json:"sender"`
	Subject        string `json:"subject"`
	Date           string `json:"date"`
	Summary        string `json:"summary,omitempty"`
	Body           string `json:"body,omitempty"`
	GeneratedReply string `json:"generated_reply,omitempty"`
}

// DeleteCriterion selects the email a delete request targets. Exactly one
// field is set.
type DeleteCriterion struct {
	EmailID        string `json:"email_id,omitempty"`
	Sender         string `json:"sender,omitempty"`
	SubjectKeyword string `json:"subject_keyword,omitempty"`
}

func ByID(id string) DeleteCriterion { return DeleteCriterion{EmailID: id} }

func BySender(sender string) DeleteCriterion { return DeleteCriterion{Sender: sender} }

func BySubjectKeyword(keyword string) DeleteCriterion {
	return DeleteCriterion{SubjectKeyword: keyword}
}

func (c DeleteCriterion) IsZero() bool {
	return c.EmailID == "" && c.Sender == "" && c.SubjectKeyword == ""
}

// Category is one bucket of a categorized inbox
type Category struct {
	Count   int            `json:"count"`
	Summary string         `json:"summary"`
	Emails  []EmailSummary `json:"emails"`
}

type CategorizeResult struct {
	TotalEmails int                 `json:"total_emails"`
	Categories  map[string]Category `json:"categories"`
}

type Digest struct {
	EmailCount int    `json:"email_count"`
	Digest     string `json:"digest"`
}
