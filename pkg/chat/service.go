package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/clients"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/config"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/database"
)

const (
	appName   = "scriptgen"
	agentName = "research_assistant"
	userID    = "user"

	instruction = "You are a research assistant answering questions from the findings of earlier research runs. " +
		"ALWAYS call search_knowledge first. When an archived page needs to be read in full, use find_content_by_url. " +
		"Group the answer by source: # Source: <url>\n\n - <supporting point>\n - <supporting point>. " +
		"If the knowledge base has nothing relevant, say so instead of guessing."

	titleTimeout = 10 * time.Second
)

// Stream event types.
const (
	EventContent    = "content"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventError      = "error"
	EventDone       = "done"
)

type StreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Service struct {
	DB     *database.PostgresDB
	Client *genai.Client
	Agent  agent.Agent
	Logger *slog.Logger

	titleModel string
}

// NewService builds the chat agent. The agent runs on Gemini, so a Google API
// key is required whichever provider drives research.
func NewService(ctx context.Context, db *database.PostgresDB, cfg *config.Config, tools *KnowledgeToolset, logger *slog.Logger) (*Service, error) {
	if cfg.GoogleApiKey == "" {
		return nil, errors.New("chat requires GOOGLE_API_KEY")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := &genai.ClientConfig{APIKey: cfg.GoogleApiKey}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("chat: genai client: %w", err)
	}

	name := chatModel(cfg)
	llm, err := gemini.NewModel(ctx, name, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("chat: model %s: %w", name, err)
	}

	assistant, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       llm,
		Description: "A research assistant with access to the research knowledge base.",
		Instruction: instruction,
		Toolsets:    []tool.Toolset{tools},
	})
	if err != nil {
		return nil, fmt.Errorf("chat: agent: %w", err)
	}

	return &Service{
		DB:         db,
		Client:     client,
		Agent:      assistant,
		Logger:     logger.With("component", "chat"),
		titleModel: name,
	}, nil
}

// chatModel picks the writer model when research also runs on Gemini.
func chatModel(cfg *config.Config) string {
	if strings.EqualFold(cfg.LLMProvider, clients.ProviderGoogle) && cfg.WriterModel != "" {
		return cfg.WriterModel
	}
	return clients.DefaultModel
}

// historyEvents converts stored messages into session events, leaving out skip.
func historyEvents(history []Message, skip uuid.UUID) []*session.Event {
	events := make([]*session.Event, 0, len(history))
	for _, m := range history {
		if m.ID == skip {
			continue
		}
		var role genai.Role = genai.RoleUser
		author := roleUser
		if m.Role == roleModel {
			role, author = genai.RoleModel, agentName
		}
		evt := session.NewEvent(uuid.NewString())
		evt.Author = author
		evt.LLMResponse = model.LLMResponse{Content: genai.NewContentFromText(m.Content, role)}
		events = append(events, evt)
	}
	return events
}

// partEvents maps one response part onto the stream events it produces.
func partEvents(part *genai.Part) []StreamEvent {
	var out []StreamEvent
	if part.Text != "" {
		out = append(out, StreamEvent{Type: EventContent, Payload: part.Text})
	}
	if part.FunctionCall != nil {
		out = append(out, StreamEvent{Type: EventToolCall, Payload: part.FunctionCall})
	}
	if part.FunctionResponse != nil {
		out = append(out, StreamEvent{Type: EventToolResult, Payload: part.FunctionResponse})
	}
	return out
}

// restoreSession replays stored history into a fresh in-memory session.
func (s *Service) restoreSession(ctx context.Context, conversationID, skip uuid.UUID) (session.Service, []Message, error) {
	sessions := session.InMemoryService()
	created, err := sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: conversationID.String(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("chat: session: %w", err)
	}

	history, err := s.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	for _, evt := range historyEvents(history, skip) {
		if err := sessions.AppendEvent(ctx, created.Session, evt); err != nil {
			return nil, nil, fmt.Errorf("chat: restore history: %w", err)
		}
	}
	return sessions, history, nil
}

// SendMessage stores the user's message and streams the agent's reply. The
// reply is persisted once the stream ends.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (iter.Seq2[StreamEvent, error], error) {
	msgID, err := s.saveMessage(ctx, conversationID, roleUser, content)
	if err != nil {
		return nil, err
	}

	sessions, history, err := s.restoreSession(ctx, conversationID, msgID)
	if err != nil {
		return nil, err
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          s.Agent,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: runner: %w", err)
	}

	msg := genai.NewContentFromText(content, genai.RoleUser)
	logger := s.Logger.With("conversation_id", conversationID)

	return func(yield func(StreamEvent, error) bool) {
		logger.Info("Agent run started")

		var answer strings.Builder
		runCfg := agent.RunConfig{StreamingMode: agent.StreamingModeSSE}
		for event, err := range r.Run(ctx, userID, conversationID.String(), msg, runCfg) {
			if err != nil {
				logger.Error("Agent run failed", "error", err)
				yield(StreamEvent{Type: EventError, Payload: err.Error()}, err)
				return
			}
			if event.LLMResponse.Content == nil {
				continue
			}
			for _, part := range event.LLMResponse.Content.Parts {
				answer.WriteString(part.Text)
				for _, ev := range partEvents(part) {
					if ev.Type != EventContent {
						logger.Debug("Agent tool event", "type", ev.Type)
					}
					if !yield(ev, nil) {
						return
					}
				}
			}
		}

		logger.Info("Agent run completed", "answer_length", answer.Len())
		if _, err := s.saveMessage(ctx, conversationID, roleModel, answer.String()); err != nil {
			logger.Error("Failed to store answer", "error", err)
		} else if err := s.touch(ctx, conversationID); err != nil {
			logger.Warn("Failed to touch conversation", "error", err)
		}

		yield(StreamEvent{Type: EventDone, Payload: EventDone}, nil)

		// only early exchanges get a generated title
		if len(history) <= 2 {
			go s.generateTitle(conversationID, content, answer.String())
		}
	}, nil
}

var titleSchema = &genai.Schema{
	Type:       genai.TypeObject,
	Properties: map[string]*genai.Schema{"title": {Type: genai.TypeString}},
	Required:   []string{"title"},
}

func titlePrompt(question, answer string) string {
	return "Name this research conversation in at most five words.\n" +
		"Question: " + question + "\nAnswer: " + answer
}

// parseTitle reads the {"title": ...} object produced by the title prompt.
func parseTitle(raw string) (string, error) {
	var resp struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Title), nil
}

func (s *Service) generateTitle(conversationID uuid.UUID, question, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	resp, err := s.Client.Models.GenerateContent(ctx, s.titleModel,
		genai.Text(titlePrompt(question, answer)),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json", ResponseSchema: titleSchema})
	if err != nil {
		s.Logger.Warn("Title generation failed", "error", err)
		return
	}

	title, err := parseTitle(resp.Text())
	if err != nil {
		s.Logger.Warn("Unreadable title response", "error", err)
		return
	}
	if title == "" {
		return
	}
	if err := s.setTitle(ctx, conversationID, title); err != nil {
		s.Logger.Error("Failed to set conversation title", "error", err)
	}
}
