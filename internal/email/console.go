package email

import (
	"fmt"
	"os"
	"sync"
)

// ConsoleService prints messages to stdout and records them for tests.
// It is the default backend in development.
type ConsoleService struct {
	mu   sync.Mutex
	sent []Message
}

var _ Service = (*ConsoleService)(nil)

// NewConsoleService builds the development/test mail backend.
func NewConsoleService() *ConsoleService {
	return &ConsoleService{}
}

func (svc *ConsoleService) SendMessages(messages ...*Message) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if !msg.HasRecipients() {
			continue
		}
		svc.sent = append(svc.sent, *msg)
		fmt.Fprintf(os.Stdout, "--- email ---\nTo: %v\nSubject: %s\n\n%s\n", msg.To, msg.Subject, msg.Body)
	}
	return nil
}

// SentMessages returns a copy of everything sent so far.
func (svc *ConsoleService) SentMessages() []Message {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]Message, len(svc.sent))
	copy(out, svc.sent)
	return out
}
