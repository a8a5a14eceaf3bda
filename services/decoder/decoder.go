package decoder

import (
	"bufio"
	"bytes"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/jhillyerd/enmime"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/utils"
)

type fields struct {
	subject string
	from    string
	to      string
	date    string
	body    string
}

type decoder struct {
	log   logger.Logger
	clock func() time.Time
}

// NewDecoder returns a decoder that stamps undated messages with clock().
// A nil clock means utils.Now.
func NewDecoder(log logger.Logger, clock func() time.Time) interfaces.Decoder {
	if clock == nil {
		clock = utils.Now
	}
	return &decoder{log: log, clock: clock}
}

// Decode never fails. Whatever cannot be read comes back as empty fields.
func (d *decoder) Decode(raw []byte, account, folder string, serverSeq uint32) *models.Message {
	f, ok := d.parseWithEnmime(raw)
	if !ok {
		f, ok = d.parseWithGoMessage(raw)
	}
	if !ok {
		f = parseRaw(raw)
	}

	return &models.Message{
		ID:         utils.MessageDocumentID(account, folder, serverSeq),
		Account:    account,
		Folder:     folder,
		ServerSeq:  serverSeq,
		Subject:    strings.TrimSpace(f.subject),
		From:       normalizeFrom(f.from),
		To:         strings.TrimSpace(f.to),
		Body:       f.body,
		ReceivedAt: d.receivedAt(f.date),
		Category:   enum.CategoryUncategorized,
		IsRead:     false,
	}
}

func (d *decoder) parseWithEnmime(raw []byte) (f fields, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warnf("enmime panicked on message: %v", r)
			ok = false
		}
	}()

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		d.log.Debugf("enmime could not parse message, falling back: %v", err)
		return fields{}, false
	}

	f = fields{
		subject: env.GetHeader("Subject"),
		from:    env.GetHeader("From"),
		to:      env.GetHeader("To"),
		date:    env.GetHeader("Date"),
		body:    env.HTML,
	}
	if f.body == "" {
		f.body = env.Text
	}
	return f, true
}

func (d *decoder) parseWithGoMessage(raw []byte) (fields, bool) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		d.log.Debugf("go-message could not parse message, falling back to raw split: %v", err)
		return fields{}, false
	}

	h := mail.Header{Header: entity.Header}
	subject, _ := h.Subject()

	var body []byte
	if entity.Body != nil {
		body, _ = io.ReadAll(entity.Body)
	}

	return fields{
		subject: subject,
		from:    h.Get("From"),
		to:      h.Get("To"),
		date:    h.Get("Date"),
		body:    string(body),
	}, true
}

// parseRaw treats everything before the first blank line as "Key: value" headers.
func parseRaw(raw []byte) fields {
	text := string(raw)
	head, body := text, ""
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if i := strings.Index(text, sep); i >= 0 {
			head, body = text[:i], text[i+len(sep):]
			break
		}
	}

	var f fields
	scanner := bufio.NewScanner(strings.NewReader(head))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "subject":
			f.subject = value
		case "from":
			f.from = value
		case "to":
			f.to = value
		case "date":
			f.date = value
		}
	}
	f.body = body
	return f
}

func (d *decoder) receivedAt(date string) time.Time {
	if date = strings.TrimSpace(date); date != "" {
		if t, err := netmail.ParseDate(date); err == nil && !t.IsZero() {
			return t.UTC()
		}
	}
	return d.clock().UTC()
}

// normalizeFrom lower-cases and cleans the address part when it is valid,
// keeping the display name. Invalid values are returned as they came.
func normalizeFrom(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	name, address := "", utils.ExtractEmailAddress(value)
	if parsed, err := mail.ParseAddress(value); err == nil {
		name, address = parsed.Name, parsed.Address
	}

	validation := mailvalidate.ValidateEmailSyntax(address)
	if !validation.IsValid {
		return value
	}
	if name == "" {
		return validation.CleanEmail
	}
	return name + " <" + validation.CleanEmail + ">"
}
