package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// consoleService logs rendered messages instead of sending them. Used in debug mode.
type consoleService struct {
	from    mail.Address
	prefix  string
	discard bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.EmailService {
	return &consoleService{from: conf.DefaultFromEmail, prefix: "[" + conf.AppName + "] "}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

// deliver renders msg and records it once it has somewhere to go and something to say.
func (svc consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Printf("%+v", errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()

	if !svc.discard {
		log.Println(svc.format(*msg))
	}
}

func (svc consoleService) format(msg core.EmailMessage) string {
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "From: %s\n", svc.from.String())
	_, _ = fmt.Fprintf(&sb, "To: %s\n", strings.Join(to, ", "))
	_, _ = fmt.Fprintf(&sb, "Subject: %s\n\n", svc.prefix+msg.Subject)
	sb.WriteString(msg.TextContent)
	return sb.String()
}

// ResetSentMessages clears the messages recorded so far.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	mu.Unlock()
}

// consoleServiceMock delivers synchronously and silently, so tests can inspect SentMessages.
type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	svc := consoleService{from: conf.DefaultFromEmail, prefix: "[" + conf.AppName + "] ", discard: true}
	return &consoleServiceMock{consoleService: svc}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.deliver(msg)
	}
}
