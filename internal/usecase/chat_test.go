package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/infra/llm"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

// memChatRepo is an in-memory port.ChatRepository.
type memChatRepo struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	messages      map[string][]domain.ChatMessage
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]domain.ChatMessage),
	}
}

func (m *memChatRepo) CreateConversation(_ context.Context, conversation domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := conversation
	m.conversations[conversation.ID] = &copied
	return nil
}

func (m *memChatRepo) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *conversation
	return &copied, nil
}

func (m *memChatRepo) ListConversations(_ context.Context, ownerID string) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, conversation := range m.conversations {
		if conversation.OwnerID == ownerID {
			out = append(out, *conversation)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memChatRepo) TouchConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (m *memChatRepo) RenameConversation(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	conversation.Title = title
	return nil
}

func (m *memChatRepo) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *memChatRepo) AddMessage(_ context.Context, message domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], message)
	return nil
}

func (m *memChatRepo) ListMessages(_ context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.ChatMessage{}, m.messages[conversationID]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

var _ port.ChatRepository = (*memChatRepo)(nil)

// recordingBroadcaster captures broadcast calls for assertions.
type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
}

func (b *recordingBroadcaster) BroadcastMessage(_ string, message domain.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
}

func (b *recordingBroadcaster) delivered() []domain.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ChatMessage{}, b.messages...)
}

type chatFixture struct {
	service     *ChatService
	chats       *memChatRepo
	projects    *memProjectRepo
	completion  *stubCompletion
	broadcaster *recordingBroadcaster
	events      *stubEvents
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	chats := newMemChatRepo()
	projects := newMemProjectRepo()
	completion := &stubCompletion{reply: "Focus on your unit economics."}
	broadcaster := &recordingBroadcaster{}
	events := newStubEvents()

	service := NewChatService(chats, projects, completion, broadcaster, events, zap.NewNop())
	return &chatFixture{
		service:     service,
		chats:       chats,
		projects:    projects,
		completion:  completion,
		broadcaster: broadcaster,
		events:      events,
	}
}

func (f *chatFixture) openConversation(t *testing.T, ownerID string, input ConversationInput) *domain.Conversation {
	t.Helper()

	conversation, err := f.service.CreateConversation(context.Background(), ownerID, input)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conversation
}

func TestCreateConversationDefaultsToAdvisorMode(t *testing.T) {
	f := newChatFixture(t)

	conversation := f.openConversation(t, testOwnerID, ConversationInput{Title: "Pricing"})
	if conversation.Mode != domain.ModeAdvisor {
		t.Errorf("mode = %q, want %q", conversation.Mode, domain.ModeAdvisor)
	}
}

func TestCreateConversationRejectsUnknownMode(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.CreateConversation(context.Background(), testOwnerID, ConversationInput{Mode: "therapist"})
	if !errors.Is(err, ErrInvalidConversationMode) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidConversationMode)
	}
}

func TestCreateConversationChecksProjectOwnership(t *testing.T) {
	f := newChatFixture(t)

	project := domain.Project{ID: "proj-1", OwnerID: "someone-else", Name: "Theirs", Version: 1}
	if err := f.projects.Create(context.Background(), project); err != nil {
		t.Fatalf("seed project: %v", err)
	}

	_, err := f.service.CreateConversation(context.Background(), testOwnerID, ConversationInput{ProjectID: &project.ID})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("error = %v, want %v", err, ErrForbidden)
	}

	missing := "no-such-project"
	_, err = f.service.CreateConversation(context.Background(), testOwnerID, ConversationInput{ProjectID: &missing})
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("error = %v, want %v", err, ErrProjectNotFound)
	}
}

func TestSendMessageStoresBothSidesAndBroadcasts(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.openConversation(t, testOwnerID, ConversationInput{Mode: domain.ModeObjectionPractice})

	userMsg, reply, err := f.service.SendMessage(context.Background(), testOwnerID, conversation.ID, "Our churn is 2% monthly.")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if userMsg.Role != domain.MessageRoleUser {
		t.Errorf("user message role = %q", userMsg.Role)
	}
	if reply == nil || reply.Role != domain.MessageRoleAssistant {
		t.Fatalf("reply = %+v, want assistant message", reply)
	}
	if reply.Content != "Focus on your unit economics." {
		t.Errorf("reply content = %q", reply.Content)
	}
	if f.completion.lastMode != domain.ModeObjectionPractice {
		t.Errorf("completion mode = %q, want %q", f.completion.lastMode, domain.ModeObjectionPractice)
	}

	_, messages, err := f.service.GetConversation(context.Background(), testOwnerID, conversation.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(messages))
	}

	delivered := f.broadcaster.delivered()
	if len(delivered) != 2 {
		t.Fatalf("broadcast messages = %d, want 2", len(delivered))
	}
	if delivered[0].Role != domain.MessageRoleUser || delivered[1].Role != domain.MessageRoleAssistant {
		t.Errorf("broadcast order = [%s, %s]", delivered[0].Role, delivered[1].Role)
	}
	if got := f.events.count("chat_message_created"); got != 2 {
		t.Errorf("chat message events = %d, want 2", got)
	}
}

func TestSendMessageSetsTitleFromFirstMessage(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.openConversation(t, testOwnerID, ConversationInput{})

	long := strings.Repeat("How should I price my SaaS? ", 5)
	if _, _, err := f.service.SendMessage(context.Background(), testOwnerID, conversation.ID, long); err != nil {
		t.Fatalf("send message: %v", err)
	}

	stored, err := f.chats.GetConversation(context.Background(), conversation.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if stored.Title == "" {
		t.Fatal("title not derived from first message")
	}
	if len(stored.Title) > conversationTitleLimit {
		t.Errorf("title length = %d, want <= %d", len(stored.Title), conversationTitleLimit)
	}

	// A present title is never overwritten.
	titled := f.openConversation(t, testOwnerID, ConversationInput{Title: "Kept"})
	if _, _, err := f.service.SendMessage(context.Background(), testOwnerID, titled.ID, "hello"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	storedTitled, _ := f.chats.GetConversation(context.Background(), titled.ID)
	if storedTitled.Title != "Kept" {
		t.Errorf("title = %q, want Kept", storedTitled.Title)
	}
}

func TestSendMessageTitleTruncatesOnRuneBoundary(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.openConversation(t, testOwnerID, ConversationInput{})

	long := strings.Repeat("Wie bepreise ich höhere Pläne? ", 4)
	if _, _, err := f.service.SendMessage(context.Background(), testOwnerID, conversation.ID, long); err != nil {
		t.Fatalf("send message: %v", err)
	}

	stored, err := f.chats.GetConversation(context.Background(), conversation.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if !utf8.ValidString(stored.Title) {
		t.Errorf("title is not valid UTF-8: %q", stored.Title)
	}
	if got := utf8.RuneCountInString(stored.Title); got > conversationTitleLimit {
		t.Errorf("title runes = %d, want <= %d", got, conversationTitleLimit)
	}
}

func TestSendMessageKeepsUserMessageWhenCompletionFails(t *testing.T) {
	f := newChatFixture(t)
	f.completion.err = llm.ErrUnavailable
	conversation := f.openConversation(t, testOwnerID, ConversationInput{})

	userMsg, reply, err := f.service.SendMessage(context.Background(), testOwnerID, conversation.ID, "Anyone there?")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("error = %v, want %v", err, llm.ErrUnavailable)
	}
	if userMsg == nil {
		t.Fatal("user message dropped on completion failure")
	}
	if reply != nil {
		t.Fatalf("reply = %+v, want nil", reply)
	}

	_, messages, err := f.service.GetConversation(context.Background(), testOwnerID, conversation.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != domain.MessageRoleUser {
		t.Fatalf("stored messages = %+v, want the user message only", messages)
	}
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.openConversation(t, testOwnerID, ConversationInput{})

	_, _, err := f.service.SendMessage(context.Background(), testOwnerID, conversation.ID, "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyMessage)
	}
	if f.completion.calls != 0 {
		t.Errorf("completion calls = %d, want 0", f.completion.calls)
	}
}

func TestConversationOwnershipEnforced(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.openConversation(t, testOwnerID, ConversationInput{})

	if _, _, err := f.service.GetConversation(context.Background(), "intruder", conversation.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("get error = %v, want %v", err, ErrForbidden)
	}
	if _, _, err := f.service.SendMessage(context.Background(), "intruder", conversation.ID, "hi"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("send error = %v, want %v", err, ErrForbidden)
	}
	if err := f.service.DeleteConversation(context.Background(), "intruder", conversation.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete error = %v, want %v", err, ErrForbidden)
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.openConversation(t, testOwnerID, ConversationInput{})

	if _, _, err := f.service.SendMessage(context.Background(), testOwnerID, conversation.ID, "first"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if err := f.service.DeleteConversation(context.Background(), testOwnerID, conversation.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}

	if _, _, err := f.service.GetConversation(context.Background(), testOwnerID, conversation.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("get deleted conversation error = %v, want %v", err, ErrConversationNotFound)
	}
}
