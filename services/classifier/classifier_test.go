package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
)

func msg(subject, body, from string) *models.Message {
	return &models.Message{Subject: subject, Body: body, From: from}
}

func TestClassify_Rules(t *testing.T) {
	cases := []struct {
		name string
		msg  *models.Message
		want enum.Category
	}{
		{"out of office", msg("Out of Office", "back monday", "a@b.com"), enum.CategoryOutOfOffice},
		{"auto-reply", msg("Re: hi", "This is an Auto-Reply", "a@b.com"), enum.CategoryOutOfOffice},
		{"automatic reply", msg("Automatic reply: hello", "", "a@b.com"), enum.CategoryOutOfOffice},
		{"meeting booked", msg("Meeting confirmed", "see you", "a@b.com"), enum.CategoryMeetingBooked},
		{"meeting needs a confirmation word", msg("Meeting notes", "", "a@b.com"), enum.CategoryUncategorized},
		{"interested", msg("Re: proposal", "We are interested", "a@b.com"), enum.CategoryInterested},
		{"would like to", msg("", "I would like to learn more", "a@b.com"), enum.CategoryInterested},
		{"interview", msg("Interview invitation", "", "hr@b.com"), enum.CategoryInterested},
		{"declined", msg("Re: proposal", "We have declined", "a@b.com"), enum.CategoryNotInterested},
		{"pass as substring", msg("Reset your password", "", "a@b.com"), enum.CategoryNotInterested},
		{"unsubscribe", msg("Newsletter", "click to unsubscribe", "news@b.com"), enum.CategorySpam},
		{"noreply sender", msg("Your receipt", "thanks", "noreply@x.com"), enum.CategorySpam},
		{"noreply sender is case-insensitive", msg("Receipt", "", "NoReply@X.com"), enum.CategorySpam},
		{"nothing matches", msg("Hello", "How are you?", "a@b.com"), enum.CategoryUncategorized},
		{"empty", &models.Message{}, enum.CategoryUncategorized},
		{"nil", nil, enum.CategoryUncategorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.msg))
		})
	}
}

func TestClassify_Precedence(t *testing.T) {
	// meeting booked beats interested
	assert.Equal(t, enum.CategoryMeetingBooked,
		Classify(msg("Meeting scheduled", "I am interested", "a@b.com")))
	// out of office beats interview
	assert.Equal(t, enum.CategoryOutOfOffice,
		Classify(msg("Out of office", "Re: interview", "a@b.com")))
	// "not interested" contains "interested", which is the earlier rule
	assert.Equal(t, enum.CategoryInterested,
		Classify(msg("", "We are not interested", "a@b.com")))
	// any earlier rule beats the noreply sender
	assert.Equal(t, enum.CategoryInterested,
		Classify(msg("Interview slot", "", "noreply@x.com")))
}

func TestClassify_Deterministic(t *testing.T) {
	m := msg("Meeting booked for Tuesday", "Looking forward", "jane@acme.com")
	first := Classify(m)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(m))
	}
	assert.Equal(t, first, NewClassifier().Classify(m))
}

func TestExplain(t *testing.T) {
	r := Explain(msg("Special offer", "", "shop@b.com"))
	assert.Equal(t, enum.CategorySpam, r.Category)
	assert.Equal(t, "bulk_sender", r.Rule)
	assert.Equal(t, "offer", r.Keyword)
	assert.Equal(t, "bulk_sender:offer", r.Reason())

	r = Explain(msg("hi", "", ""))
	assert.Equal(t, "", r.Reason())
}

func TestClassify_DoesNotMutate(t *testing.T) {
	m := msg("Meeting scheduled", "body", "a@b.com")
	before := *m
	Classify(m)
	assert.Equal(t, before, *m)
}
