package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CommandType enumerates consumer -> pipeline commands.
type CommandType string

const (
	CommandChat          CommandType = "chat"
	CommandGetSession    CommandType = "get_session"
	CommandDeleteSession CommandType = "delete_session"
)

// Command is a marker interface implemented by all protocol commands.
type Command interface {
	GetType() CommandType
}

// ChatRequest submits one query for a session.
type ChatRequest struct {
	Type      CommandType `json:"type"`
	Query     string      `json:"query"`
	SessionID string      `json:"session_id"`
}

// GetType implements Command.
func (c ChatRequest) GetType() CommandType { return CommandChat }

// GetSessionCommand requests a session's current state.
type GetSessionCommand struct {
	Type      CommandType `json:"type"`
	SessionID string      `json:"session_id"`
}

// GetType implements Command.
func (c GetSessionCommand) GetType() CommandType { return CommandGetSession }

// DeleteSessionCommand destroys a session's persisted state.
type DeleteSessionCommand struct {
	Type      CommandType `json:"type"`
	SessionID string      `json:"session_id"`
}

// GetType implements Command.
func (c DeleteSessionCommand) GetType() CommandType { return CommandDeleteSession }

type rawCommand struct {
	Type CommandType `json:"type"`
}

// DecodeCommand converts raw JSON into a strongly typed command.
func DecodeCommand(data []byte) (Command, error) {
	var base rawCommand
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch base.Type {
	case CommandChat:
		var cmd ChatRequest
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
		if cmd.SessionID == "" {
			return nil, errors.New("chat requires session_id")
		}
		if cmd.Query == "" {
			return nil, errors.New("chat requires query")
		}
		return cmd, nil
	case CommandGetSession:
		var cmd GetSessionCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode get_session: %w", err)
		}
		if cmd.SessionID == "" {
			return nil, errors.New("get_session requires session_id")
		}
		return cmd, nil
	case CommandDeleteSession:
		var cmd DeleteSessionCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode delete_session: %w", err)
		}
		if cmd.SessionID == "" {
			return nil, errors.New("delete_session requires session_id")
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown command type: %s", base.Type)
	}
}

// NewSessionID generates a new opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
