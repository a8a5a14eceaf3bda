package enum

type EmailProvider string

const (
	EmailProviderGmail   EmailProvider = "gmail"
	EmailProviderOutlook EmailProvider = "outlook"
	EmailProviderYahoo   EmailProvider = "yahoo"
	EmailProviderGeneric EmailProvider = "generic"
)

func (t EmailProvider) String() string {
	return string(t)
}

// DefaultImapHost returns the well-known IMAP host for a provider, or "" for generic.
func (t EmailProvider) DefaultImapHost() string {
	switch t {
	case EmailProviderGmail:
		return "imap.gmail.com"
	case EmailProviderOutlook:
		return "outlook.office365.com"
	case EmailProviderYahoo:
		return "imap.mail.yahoo.com"
	default:
		return ""
	}
}

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "starttls"
)

func (t EmailSecurity) String() string {
	return string(t)
}

// Category is the closed set of outcomes the classifier produces.
type Category string

const (
	CategoryInterested    Category = "interested"
	CategoryMeetingBooked Category = "meeting_booked"
	CategoryNotInterested Category = "not_interested"
	CategorySpam          Category = "spam"
	CategoryOutOfOffice   Category = "out_of_office"
	CategoryUncategorized Category = "uncategorized"
)

var AllCategories = []Category{
	CategoryInterested,
	CategoryMeetingBooked,
	CategoryNotInterested,
	CategorySpam,
	CategoryOutOfOffice,
	CategoryUncategorized,
}

func (c Category) String() string {
	return string(c)
}

func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory never returns a value outside the closed set.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.IsValid() {
		return c
	}
	return CategoryUncategorized
}
