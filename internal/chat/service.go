// Package chat implements the operations exposed to the HTTP layer:
// VerifyAccess, FetchMessages, SendMessage and CollectionPreview.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chain"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/gate"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/preview"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/readcache"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

// MaxContentBytes bounds a single message body.
const MaxContentBytes = 2000

// Previewer loads collection metadata.
type Previewer interface {
	Preview(ctx context.Context, collection common.Address) (chain.CollectionPreview, error)
}

// Deps wires the service to its collaborators. Previewer may be nil, in which
// case previews carry only the collection address.
type Deps struct {
	Gate      *gate.Gate
	Wallets   *wallet.Coordinator
	Registry  wallet.Registry
	Relay     *relay.Relay
	Cache     *readcache.Cache
	Directory relay.Directory
	Previews  *preview.Cache[chain.CollectionPreview]
	Previewer Previewer
}

// Service is the chat relay core.
type Service struct {
	gate      *gate.Gate
	wallets   *wallet.Coordinator
	registry  wallet.Registry
	relay     *relay.Relay
	cache     *readcache.Cache
	directory relay.Directory
	previews  *preview.Cache[chain.CollectionPreview]
	previewer Previewer
	logger    zerolog.Logger
}

// NewService creates a Service.
func NewService(d Deps, logger zerolog.Logger) *Service {
	if d.Directory == nil {
		d.Directory = relay.DefaultGroups{}
	}
	return &Service{
		gate:      d.Gate,
		wallets:   d.Wallets,
		registry:  d.Registry,
		relay:     d.Relay,
		cache:     d.Cache,
		directory: d.Directory,
		previews:  d.Previews,
		previewer: d.Previewer,
		logger:    logger.With().Str("component", "chat").Logger(),
	}
}

// SendRequest is the input of SendMessage.
type SendRequest struct {
	GroupID string
	Sender  string
	Content string
	Kind    models.Kind
}

// VerifyAccess reports whether any of wallets holds a token of collection.
func (s *Service) VerifyAccess(ctx context.Context, wallets []string, collection string) (bool, error) {
	return s.gate.Verify(ctx, wallets, collection)
}

// FetchMessages returns the full log of a group in ascending id order. The
// argument is either a group id or a collection address, which selects the
// collection's default group.
func (s *Service) FetchMessages(ctx context.Context, groupIDOrCollection string) ([]models.Message, error) {
	groupID, collection, err := s.resolveGroup(ctx, groupIDOrCollection)
	if err != nil {
		return nil, err
	}

	msgs, err := s.cache.Read(ctx, collection, groupID)
	if err == nil {
		return msgs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.logger.Warn().Err(err).Str("group_id", groupID).Msg("read cache failed, reading relay directly")
	return s.relay.ReadSince(ctx, groupID, 0)
}

// SendMessage gates the sender, secures a sponsor wallet when writes are
// sponsored and appends the message. No stage writes before every earlier
// stage has succeeded.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (models.Message, error) {
	kind, err := validateSend(req)
	if err != nil {
		return models.Message{}, err
	}
	sender := common.HexToAddress(req.Sender).Hex()

	groupID, collection, err := s.resolveGroup(ctx, req.GroupID)
	if err != nil {
		return models.Message{}, err
	}

	profileID, wallets, err := s.senderWallets(ctx, sender)
	if err != nil {
		return models.Message{}, err
	}

	ok, err := s.gate.Verify(ctx, wallets, collection)
	if err != nil {
		return models.Message{}, err
	}
	if !ok {
		return models.Message{}, apperr.New(apperr.KindGateDenied, "sender does not hold a token from this collection")
	}

	var signer *wallet.ActiveWallet
	if s.relay.Sponsored() {
		if profileID == uuid.Nil {
			return models.Message{}, apperr.New(apperr.KindNoSponsorWallet, "sender has no profile with an embedded wallet")
		}
		signer, err = s.wallets.EnsureSponsorWallet(ctx, profileID)
		if err != nil {
			return models.Message{}, err
		}
	}

	msg, err := s.relay.Append(ctx, relay.AppendRequest{
		GroupID:           groupID,
		CollectionAddress: collection,
		Author:            sender,
		Content:           req.Content,
		Kind:              kind,
		Signer:            signer,
	})
	if err != nil {
		return models.Message{}, err
	}

	s.logger.Info().
		Str("group_id", groupID).
		Int64("id", msg.ID).
		Str("sender", sender).
		Str("kind", string(kind)).
		Msg("message sent")

	if kind == models.KindCommand && strings.HasPrefix(strings.TrimSpace(req.Content), "/") {
		s.answerCommand(ctx, groupID, collection, req.Content)
	}
	return msg, nil
}

// CollectionPreview returns display metadata for a collection.
func (s *Service) CollectionPreview(ctx context.Context, collection string) (chain.CollectionPreview, error) {
	addr, err := models.ParseAddress(collection)
	if err != nil {
		return chain.CollectionPreview{}, apperr.Validation("invalid collection address %q", collection)
	}
	key := models.NormalizeAddress(addr.Hex())

	if p, ok := s.previews.Get(key); ok {
		return p, nil
	}
	if s.previewer == nil {
		return chain.CollectionPreview{Address: addr.Hex()}, nil
	}

	p, err := s.previewer.Preview(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return chain.CollectionPreview{}, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("collection", key).Msg("collection preview failed")
		return chain.CollectionPreview{}, apperr.Wrap(apperr.KindInternal, "collection metadata is unavailable", err)
	}
	s.previews.Set(key, p)
	return p, nil
}

func validateSend(req SendRequest) (models.Kind, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", apperr.Validation("content is required")
	}
	if len(req.Content) > MaxContentBytes {
		return "", apperr.Validation("content exceeds %d bytes", MaxContentBytes)
	}
	if !models.IsAddress(req.Sender) {
		return "", apperr.Validation("invalid sender address %q", req.Sender)
	}
	kind, err := models.ParseKind(string(req.Kind))
	if err != nil {
		return "", apperr.Validation("invalid message kind %q", req.Kind)
	}
	if !kind.UserWritable() {
		return "", apperr.Validation("message kind %q is reserved", kind)
	}
	return kind, nil
}

// resolveGroup maps a group id or collection address to the group id and
// its collection.
func (s *Service) resolveGroup(ctx context.Context, idOrCollection string) (string, string, error) {
	id := strings.TrimSpace(idOrCollection)
	if id == "" {
		return "", "", apperr.Validation("group id is required")
	}
	if models.IsAddress(id) {
		return models.DefaultGroupID(id), models.NormalizeAddress(id), nil
	}

	collection, err := s.directory.CollectionForGroup(ctx, id)
	if err != nil {
		if errors.Is(err, relay.ErrUnknownGroup) {
			return "", "", apperr.Newf(apperr.KindNotFound, "unknown group %q", id)
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", apperr.Wrap(apperr.KindInternal, "group directory is unavailable", err)
	}
	return id, collection, nil
}

// senderWallets returns the sender's profile and every wallet bound to it.
// A sender without a profile is gated on its own address and has no profile.
func (s *Service) senderWallets(ctx context.Context, sender string) (uuid.UUID, []string, error) {
	profileID, err := s.registry.ProfileForWallet(ctx, sender)
	if errors.Is(err, wallet.ErrProfileNotFound) {
		return uuid.Nil, []string{sender}, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return uuid.Nil, nil, ctx.Err()
		}
		return uuid.Nil, nil, apperr.Wrap(apperr.KindInternal, "wallet registry is unavailable", err)
	}

	bindings, err := s.registry.WalletBindings(ctx, profileID)
	if err != nil {
		if ctx.Err() != nil {
			return uuid.Nil, nil, ctx.Err()
		}
		return uuid.Nil, nil, apperr.Wrap(apperr.KindInternal, "wallet registry is unavailable", err)
	}

	wallets := []string{sender}
	for _, b := range bindings {
		wallets = append(wallets, b.WalletAddress)
	}
	return profileID, wallets, nil
}
