package platform

import (
	gcppubsub "cloud.google.com/go/pubsub"
	"context"
	"fmt"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/utils"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

// Deposited is emitted by the chain watcher when funds reach a player's wallet.
type Deposited struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type platformContractBridge struct {
	platformService *Service
}

func (b *platformContractBridge) handleDeposited(ctx context.Context, message *gcppubsub.Message) {
	log.Info().Msg("Received message payload " + string(message.Data))
	if err := b.processDeposited(ctx, message.Data); err != nil {
		log.Warn().Err(err).Msg("Error while handling Deposited")
		message.Nack()
		return
	}
	message.Ack()
}

func (b *platformContractBridge) processDeposited(ctx context.Context, data []byte) error {
	messagePayload, err := utils.DecodeMessage[Deposited](data)
	if err != nil {
		return fmt.Errorf("parse Deposited message: %w", err)
	}
	if messagePayload.Address == "" || messagePayload.Amount == 0 {
		return fmt.Errorf("deposit missing address or amount")
	}
	if problem := b.platformService.RecordDeposit(ctx, flow.HexToAddress(messagePayload.Address), messagePayload.Amount); problem != nil {
		return problem
	}
	return nil
}
