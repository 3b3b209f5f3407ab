// Package submission turns contact and quote forms into support chats,
// keeping a local backlog when the chat path is unavailable.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// ReceivedMessage is shown to the visitor after any accepted submission.
const ReceivedMessage = "Your submission has been received. We'll get back to you within 24-48 hours."

const notSpecified = "Not specified"

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrNotFound      = errors.New("submission not found")
)

// Kind of submission.
type Kind string

const (
	KindContact Kind = "contact"
	KindQuote   Kind = "quote_request"
)

// Status of a backlog entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Contact is the contact form.
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Quote is the quote request form.
type Quote struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	BuildType string `json:"buildType"`
	Budget    string `json:"budget"`
	Message   string `json:"message"`
}

// Submission is a normalized form, as kept in the backlog.
type Submission struct {
	ID          string `json:"id"`
	Type        Kind   `json:"type"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	BuildType   string `json:"buildType,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Source      string `json:"source"`
	SubmittedAt int64  `json:"submittedAt"`
	Status      Status `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Receipt is returned to the visitor.
type Receipt struct {
	Success bool   `json:"success"`
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// Chats is the part of the chat dispatcher used for submissions.
type Chats interface {
	Initialized() bool
	CreateSession(ctx context.Context, in chat.NewSession) (string, error)
	SendMessage(ctx context.Context, chatID string, msg chat.Message) (chat.Message, error)
}

// Service routes submissions.
type Service struct {
	chats Chats
	store *local.Adapter
	clock clock.Clock
	mu    sync.Mutex
}

// NewService creates a submission service.
func NewService(chats Chats, store *local.Adapter, c clock.Clock) *Service {
	if c == nil {
		c = clock.Real()
	}
	return &Service{chats: chats, store: store, clock: c}
}

// SubmitContact handles the contact form.
func (s *Service) SubmitContact(ctx context.Context, in Contact) (Receipt, error) {
	name, email, msg := strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), strings.TrimSpace(in.Message)
	if name == "" || email == "" || msg == "" {
		return Receipt{}, ErrMissingFields
	}
	return s.submit(ctx, Submission{
		Type:    KindContact,
		Name:    name,
		Email:   email,
		Message: msg,
		Source:  "Contact Form",
	})
}

// SubmitQuote handles the quote request form.
func (s *Service) SubmitQuote(ctx context.Context, in Quote) (Receipt, error) {
	name, email := strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	if name == "" || email == "" {
		return Receipt{}, fmt.Errorf("%w: name and email", ErrMissingFields)
	}
	sub := Submission{
		Type:      KindQuote,
		Name:      name,
		Email:     email,
		Message:   strings.TrimSpace(in.Message),
		BuildType: strings.TrimSpace(in.BuildType),
		Budget:    strings.TrimSpace(in.Budget),
		Source:    "Quote Request Form",
	}
	if sub.BuildType == "" {
		sub.BuildType = notSpecified
	}
	if sub.Budget == "" {
		sub.Budget = notSpecified
	}
	return s.submit(ctx, sub)
}

func (s *Service) submit(ctx context.Context, sub Submission) (Receipt, error) {
	sub.SubmittedAt = clock.Millis(s.clock.Now())

	if !s.chats.Initialized() {
		log.Printf("[submission] realtime unavailable, storing %s locally", sub.Type)
		return s.backlog(ctx, sub, nil)
	}
	chatID, err := s.openChat(ctx, sub)
	if err != nil {
		log.Printf("[submission] chat path failed, storing %s locally: %v", sub.Type, err)
		return s.backlog(ctx, sub, err)
	}
	return Receipt{Success: true, ChatID: chatID, Message: ReceivedMessage}, nil
}

func (s *Service) openChat(ctx context.Context, sub Submission) (string, error) {
	chatID, err := s.chats.CreateSession(ctx, chat.NewSession{
		UserID:    sub.Email,
		UserName:  sub.Name,
		UserEmail: sub.Email,
		Source:    sub.Source,
	})
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	if _, err := s.chats.SendMessage(ctx, chatID, chat.Message{
		Type:     chat.MessageTypeUser,
		Text:     FormatMessage(sub),
		UserID:   sub.Email,
		Username: sub.Name,
	}); err != nil {
		return "", fmt.Errorf("send submission: %w", err)
	}
	return chatID, nil
}

func (s *Service) backlog(ctx context.Context, sub Submission, cause error) (Receipt, error) {
	now := s.clock.Now()
	sub.ID = ids.New(ids.PrefixLocal, now)
	sub.Status = StatusPending
	if cause != nil {
		sub.Error = cause.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := local.ReadList[Submission](ctx, s.store, local.KeySubmissions)
	items = append(items, sub)
	if err := local.WriteList(ctx, s.store, local.KeySubmissions, items); err != nil {
		if cause != nil {
			return Receipt{}, cause
		}
		return Receipt{}, fmt.Errorf("unable to process submission: %w", err)
	}
	return Receipt{Success: true, ChatID: sub.ID, Message: ReceivedMessage}, nil
}

// Pending lists backlog entries still waiting for follow-up, oldest first.
func (s *Service) Pending(ctx context.Context) []Submission {
	items := local.ReadList[Submission](ctx, s.store, local.KeySubmissions)
	out := items[:0]
	for _, it := range items {
		if it.Status == "" || it.Status == StatusPending {
			out = append(out, it)
		}
	}
	return out
}

// Resolve marks a backlog entry as handled.
func (s *Service) Resolve(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := local.ReadList[Submission](ctx, s.store, local.KeySubmissions)
	for i := range items {
		if items[i].ID == id {
			items[i].Status = StatusResolved
			return local.WriteList(ctx, s.store, local.KeySubmissions, items)
		}
	}
	return ErrNotFound
}

// FormatMessage renders a submission as the first chat message.
func FormatMessage(sub Submission) string {
	var b strings.Builder
	switch sub.Type {
	case KindContact:
		b.WriteString("📧 **Contact Form Submission**\n\n")
		fmt.Fprintf(&b, "**From:** %s\n", sub.Name)
		fmt.Fprintf(&b, "**Email:** %s\n\n", sub.Email)
		fmt.Fprintf(&b, "**Message:**\n%s", sub.Message)
	case KindQuote:
		b.WriteString("💻 **Quote Request**\n\n")
		fmt.Fprintf(&b, "**Name:** %s\n", sub.Name)
		fmt.Fprintf(&b, "**Email:** %s\n", sub.Email)
		fmt.Fprintf(&b, "**Build Type:** %s\n", sub.BuildType)
		fmt.Fprintf(&b, "**Budget:** %s\n", sub.Budget)
		if sub.Message != "" {
			fmt.Fprintf(&b, "\n**Additional Notes:**\n%s", sub.Message)
		}
	}
	submitted := time.UnixMilli(sub.SubmittedAt).UTC().Format(time.RFC3339)
	fmt.Fprintf(&b, "\n\n---\n*Submitted: %s*", submitted)
	return b.String()
}
