package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
)

const helpText = "Available commands: /help shows this list, /ping checks that I'm listening, /about describes this collection."

// answerCommand appends the bot's reply to a slash command. The user's
// message is already stored, so failures here are logged and dropped.
func (s *Service) answerCommand(ctx context.Context, groupID, collection, content string) {
	reply := s.commandReply(ctx, collection, content)

	_, err := s.relay.Append(ctx, relay.AppendRequest{
		GroupID:           groupID,
		CollectionAddress: collection,
		Author:            s.relay.BotName(),
		Content:           reply,
		Kind:              models.KindBotResponse,
		IsBot:             true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("group_id", groupID).Msg("failed to append bot reply")
	}
}

func (s *Service) commandReply(ctx context.Context, collection, content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return helpText
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "/help":
		return helpText
	case "/ping":
		return "pong"
	case "/about":
		p, err := s.CollectionPreview(ctx, collection)
		if err != nil {
			return "I couldn't load details for this collection right now."
		}
		if p.Name == "" {
			return fmt.Sprintf("This is the holders' channel for collection %s.", p.Address)
		}
		line := fmt.Sprintf("%s (%s) at %s", p.Name, p.Symbol, p.Address)
		if p.TotalSupply != "" {
			line += fmt.Sprintf(", %s tokens minted", p.TotalSupply)
		}
		return line + "."
	default:
		return fmt.Sprintf("Unknown command %s. Type /help to see what I can do.", cmd)
	}
}
