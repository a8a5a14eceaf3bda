package classifier

import (
	"strings"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
)

// rule matches when any of anyOf is in the haystack and, if set, all of allOf are too.
type rule struct {
	name     string
	category enum.Category
	allOf    []string
	anyOf    []string
	// matched against the lower-cased sender only
	fromAnyOf []string
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{
		name:     "auto_reply",
		category: enum.CategoryOutOfOffice,
		anyOf:    []string{"out of office", "auto-reply", "automatic reply"},
	},
	{
		name:     "meeting_confirmation",
		category: enum.CategoryMeetingBooked,
		allOf:    []string{"meeting"},
		anyOf:    []string{"scheduled", "confirmed", "booked"},
	},
	{
		name:     "positive_intent",
		category: enum.CategoryInterested,
		anyOf:    []string{"interested", "would like to", "schedule", "interview"},
	},
	{
		name:     "negative_intent",
		category: enum.CategoryNotInterested,
		anyOf:    []string{"not interested", "no longer", "declined", "pass"},
	},
	{
		name:      "bulk_sender",
		category:  enum.CategorySpam,
		anyOf:     []string{"unsubscribe", "promotion", "offer"},
		fromAnyOf: []string{"noreply"},
	},
}

type Result struct {
	Category enum.Category
	Rule     string
	Keyword  string
}

func (r Result) Reason() string {
	if r.Rule == "" {
		return ""
	}
	return r.Rule + ":" + r.Keyword
}

type classifier struct{}

func NewClassifier() interfaces.Classifier {
	return &classifier{}
}

func (c *classifier) Classify(message *models.Message) enum.Category {
	return Explain(message).Category
}

// Reason is the rule:keyword pair behind Classify, empty for uncategorized.
func (c *classifier) Reason(message *models.Message) string {
	return Explain(message).Reason()
}

// Classify is the package-level form of the rule set.
func Classify(message *models.Message) enum.Category {
	return Explain(message).Category
}

// Explain returns the category along with the rule and keyword that decided it.
func Explain(message *models.Message) Result {
	if message == nil {
		return Result{Category: enum.CategoryUncategorized}
	}

	from := strings.ToLower(message.From)
	haystack := strings.ToLower(message.Subject + " " + message.Body + " " + message.From)

	for _, r := range rules {
		if keyword, ok := r.match(haystack, from); ok {
			return Result{Category: r.category, Rule: r.name, Keyword: keyword}
		}
	}
	return Result{Category: enum.CategoryUncategorized}
}

func (r rule) match(haystack, from string) (string, bool) {
	for _, required := range r.allOf {
		if !strings.Contains(haystack, required) {
			return "", false
		}
	}
	for _, keyword := range r.anyOf {
		if strings.Contains(haystack, keyword) {
			return keyword, true
		}
	}
	for _, keyword := range r.fromAnyOf {
		if strings.Contains(from, keyword) {
			return keyword, true
		}
	}
	return "", false
}
