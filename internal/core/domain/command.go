package domain

import "encoding/json"

// CommandType names a remote command an eMSP can send to a CPO.
type CommandType string

const (
	CommandStartSession      CommandType = "START_SESSION"
	CommandStopSession       CommandType = "STOP_SESSION"
	CommandReserveNow        CommandType = "RESERVE_NOW"
	CommandCancelReservation CommandType = "CANCEL_RESERVATION"
	CommandUnlockConnector   CommandType = "UNLOCK_CONNECTOR"
)

// ParseCommandType returns the command type for s, or false if unknown.
func ParseCommandType(s string) (CommandType, bool) {
	switch c := CommandType(s); c {
	case CommandStartSession, CommandStopSession, CommandReserveNow,
		CommandCancelReservation, CommandUnlockConnector:
		return c, true
	}
	return "", false
}

// CommandResponseType is both the synchronous answer and the async result.
type CommandResponseType string

const (
	CommandAccepted       CommandResponseType = "ACCEPTED"
	CommandRejected       CommandResponseType = "REJECTED"
	CommandNotSupported   CommandResponseType = "NOT_SUPPORTED"
	CommandUnknownSession CommandResponseType = "UNKNOWN_SESSION"
	CommandFailed         CommandResponseType = "FAILED"
	CommandTimeout        CommandResponseType = "TIMEOUT"
)

// CommandRequest is what the gateway hands to the dispatcher.
type CommandRequest struct {
	Type        CommandType     `json:"type"`
	ResponseURL string          `json:"response_url"`
	Body        json.RawMessage `json:"body"`
}

// CommandResponse is the synchronous answer to a command.
type CommandResponse struct {
	Result  CommandResponseType `json:"result"`
	Timeout int                 `json:"timeout"`
	Message []DisplayText       `json:"message,omitempty"`
}

// CommandResult is posted asynchronously to the command's response_url.
type CommandResult struct {
	Result  CommandResponseType `json:"result"`
	Message []DisplayText       `json:"message,omitempty"`
}
