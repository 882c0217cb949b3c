// Package protocol defines the message schema spoken between clients and
// the repository server.
//
// The schema is symmetric: clients post Messages to the server's inbound
// endpoint, and the server posts Messages back over a callback channel dialed
// to the client's advertised endpoint. Command-specific payloads (checkin
// metadata, package listings) travel as YAML documents in the Text field.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/repokit/repokit/internal/errors"
)

// Command discriminates message handling.
type Command string

const (
	CommandConnect       Command = "Connect"
	CommandLogIn         Command = "LogIn"
	CommandLogout        Command = "Logout"
	CommandCheckIn       Command = "CheckIn"
	CommandExtraction    Command = "Extraction"
	CommandFileRequest   Command = "FileRequest"
	CommandStatusmsg     Command = "Statusmsg"
	CommandPackageList   Command = "PackageList"
	CommandCancelCheckin Command = "CancelCheckin"

	// CommandFileTransfer announces a file on the callback channel: a text
	// frame carrying the filename, followed by one binary message with the
	// raw bytes.
	CommandFileTransfer Command = "FileTransfer"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CommandConnect, CommandLogIn, CommandLogout, CommandCheckIn,
		CommandExtraction, CommandFileRequest, CommandStatusmsg,
		CommandPackageList, CommandCancelCheckin, CommandFileTransfer:
		return true
	}
	return false
}

// ParseCommand maps a wire string to a Command.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	if !c.Valid() {
		return "", errors.NewParseError("bad_command", fmt.Sprintf("unknown command %q", s))
	}
	return c, nil
}

// Message is the unit of exchange between client and server.
type Message struct {
	// Endpoint is the callback address the sender can be reached at.
	Endpoint string `json:"endpoint,omitempty"`
	// User names the requesting responsible individual.
	User     string  `json:"user,omitempty"`
	Password string  `json:"password,omitempty"`
	Command  Command `json:"command"`
	// Text carries the command-specific payload: a checkin document, a
	// versioned package name, a status line or a package-list document.
	Text string `json:"text,omitempty"`
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.NewInternalError("message_encode", "failed to encode message", err)
	}
	return data, nil
}

// DecodeMessage parses a wire message and validates its command.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.NewParseError("message_decode", "malformed message").WithCause(err)
	}
	if !m.Command.Valid() {
		return Message{}, errors.NewParseError("bad_command",
			fmt.Sprintf("unknown command %q", m.Command))
	}
	return m, nil
}

// StatusMessage builds the Statusmsg response sent for every accepted or
// rejected request.
func StatusMessage(text string) Message {
	return Message{Command: CommandStatusmsg, Text: text}
}
