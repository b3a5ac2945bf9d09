package blockchain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/onflow/cadence"
	jsoncdc "github.com/onflow/cadence/encoding/json"
)

const CommandTopic = "blockchain.flow.commands"

type Authorizer struct {
	KmsResourceId        string `json:"kmsResourceId"`
	ResourceOwnerAddress string `json:"resourceOwnerAddress"`
}

// Command is picked up by the transaction relayer, which signs and submits it.
// Payload holds the transaction arguments in JSON-Cadence form.
type Command struct {
	Id          string            `json:"id"`
	Type        string            `json:"type"`
	Payload     []json.RawMessage `json:"payload"`
	Authorizers []Authorizer      `json:"authorizers"`
}

func (bc Command) GetEventTopicName() string {
	return CommandTopic
}

func NewBlockchainCommand(commandType string, args []cadence.Value, authorizers []Authorizer) (Command, error) {
	payload := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		encoded, err := jsoncdc.Encode(arg)
		if err != nil {
			return Command{}, fmt.Errorf("encode %s argument %d: %w", commandType, i, err)
		}
		payload = append(payload, encoded)
	}
	return Command{
		Id:          uuid.New().String(),
		Type:        commandType,
		Payload:     payload,
		Authorizers: authorizers,
	}, nil
}

// DecodeArgument reads back a single JSON-Cadence argument.
func DecodeArgument(raw json.RawMessage) (cadence.Value, error) {
	return jsoncdc.Decode(nil, raw)
}
