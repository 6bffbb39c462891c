package model

import "encoding/json"

// CommandName is the discriminant of an outbound control command.
type CommandName string

const (
	CommandEstablishConnectionRequest CommandName = "establishConnectionRequest"
	CommandPing                       CommandName = "ping"
	CommandProcessTransitInstructions CommandName = "processTransitInstructions"
	CommandProcessInbox               CommandName = "processInbox"
	CommandWhoIsOnline                CommandName = "whoIsOnline"
)

// Command is an outbound control command. Data carries the JSON-encoded
// payload as a string.
type Command struct {
	Command CommandName `json:"command"`
	Data    string      `json:"data"`
}

// EstablishConnectionRequest is the payload of the handshake command.
type EstablishConnectionRequest struct {
	Drives     []TargetDrive `json:"drives"`
	WaitTimeMs int           `json:"waitTimeMs"`
	BatchSize  int           `json:"batchSize"`
}

// NewPingCommand returns a ping command with an empty payload.
func NewPingCommand() *Command {
	return &Command{Command: CommandPing, Data: ""}
}

// NewEstablishConnectionCommand returns the handshake command for the given request.
func NewEstablishConnectionCommand(req *EstablishConnectionRequest) (*Command, error) {
	if req.Drives == nil {
		req.Drives = []TargetDrive{}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &Command{Command: CommandEstablishConnectionRequest, Data: string(data)}, nil
}
