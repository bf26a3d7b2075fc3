// Package relay owns the canonical message log of each chat group.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/metrics"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 100 * time.Millisecond
	defaultBotName        = "Collection Bot"
)

// Options configures a Relay.
type Options struct {
	// Sponsored requires a ready sponsor wallet for every user write.
	Sponsored bool
	// Degraded marks the store as the in-process fallback; empty groups are
	// seeded with a welcome sequence on first read.
	Degraded       bool
	MaxAttempts    int
	InitialBackoff time.Duration
	BotName        string
	Directory      Directory
}

// AppendRequest describes a message to append.
type AppendRequest struct {
	GroupID           string
	CollectionAddress string
	Author            string
	Content           string
	Kind              models.Kind
	IsBot             bool
	// Signer is the result of wallet.Coordinator.EnsureSponsorWallet for the
	// author's profile. Required for user writes on a sponsored relay.
	Signer *wallet.ActiveWallet
}

// Relay serializes writes per group and assigns message ids through its Store.
type Relay struct {
	store     Store
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
	locks     sync.Map // group id -> *sync.Mutex
	mu        sync.RWMutex
	listeners []func(models.Message)
}

// New creates a Relay over store.
func New(store Store, opts Options, logger zerolog.Logger) *Relay {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.BotName == "" {
		opts.BotName = defaultBotName
	}
	if opts.Directory == nil {
		opts.Directory = DefaultGroups{}
	}
	return &Relay{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "relay").Logger(),
		now:    time.Now,
	}
}

// Degraded reports whether the relay runs on the in-process store.
func (r *Relay) Degraded() bool {
	return r.opts.Degraded
}

// Sponsored reports whether user writes require a sponsor wallet.
func (r *Relay) Sponsored() bool {
	return r.opts.Sponsored
}

// BotName is the sender name used for bot and system messages.
func (r *Relay) BotName() string {
	return r.opts.BotName
}

// Ping checks the underlying store.
func (r *Relay) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// OnAppend registers fn to run after every successful append, in id order
// per group. fn must not block.
func (r *Relay) OnAppend(fn func(models.Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Relay) notify(msg models.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.listeners {
		fn(msg)
	}
}

func (r *Relay) lockGroup(groupID string) func() {
	v, _ := r.locks.LoadOrStore(groupID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Append adds a message to the group's canonical log.
func (r *Relay) Append(ctx context.Context, req AppendRequest) (models.Message, error) {
	if strings.TrimSpace(req.GroupID) == "" {
		return models.Message{}, apperr.Validation("group id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return models.Message{}, apperr.Validation("content is required")
	}
	if _, err := models.ParseKind(string(req.Kind)); err != nil || req.Kind == "" {
		return models.Message{}, apperr.Validation("invalid message kind %q", req.Kind)
	}
	if r.opts.Sponsored && !req.IsBot && !req.Signer.Ready() {
		return models.Message{}, apperr.New(apperr.KindWalletSwitchFailed, "sponsored write requires a ready sponsor wallet")
	}

	draft := Draft{
		Ref:               ulid.Make().String(),
		GroupID:           req.GroupID,
		CollectionAddress: req.CollectionAddress,
		Sender:            req.Author,
		Content:           req.Content,
		Kind:              req.Kind,
		Timestamp:         r.now().UnixMilli(),
		IsBot:             req.IsBot,
	}

	unlock := r.lockGroup(req.GroupID)
	defer unlock()

	msg, err := r.appendDraft(ctx, draft)
	if err != nil {
		return models.Message{}, err
	}

	r.logger.Debug().
		Str("group_id", msg.GroupID).
		Int64("id", msg.ID).
		Str("kind", string(msg.Kind)).
		Msg("message appended")
	return msg, nil
}

// appendDraft writes d with retry. The caller holds the group lock.
func (r *Relay) appendDraft(ctx context.Context, d Draft) (models.Message, error) {
	var msg models.Message
	err := r.retry(ctx, "append", d.GroupID, func() error {
		m, err := r.store.Append(ctx, d)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	metrics.MessagesAppended.WithLabelValues(string(msg.Kind)).Inc()
	r.notify(msg)
	return msg, nil
}

// ReadSince returns the group's messages with id > afterID in ascending order.
// The sequence is restartable: pass the last seen id to continue.
func (r *Relay) ReadSince(ctx context.Context, groupID string, afterID int64) ([]models.Message, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, apperr.Validation("group id is required")
	}
	if afterID < 0 {
		afterID = 0
	}

	msgs, err := r.read(ctx, groupID, afterID)
	if err != nil {
		return nil, err
	}
	if r.opts.Degraded && afterID == 0 && len(msgs) == 0 {
		return r.seedWelcome(ctx, groupID)
	}
	return msgs, nil
}

func (r *Relay) read(ctx context.Context, groupID string, afterID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.retry(ctx, "read", groupID, func() error {
		m, err := r.store.ReadSince(ctx, groupID, afterID)
		if err != nil {
			return err
		}
		msgs = m
		return nil
	})
	return msgs, err
}

// seedWelcome writes the welcome sequence into an empty group.
func (r *Relay) seedWelcome(ctx context.Context, groupID string) ([]models.Message, error) {
	unlock := r.lockGroup(groupID)
	defer unlock()

	// Another reader may have seeded while we waited for the lock.
	msgs, err := r.read(ctx, groupID, 0)
	if err != nil || len(msgs) > 0 {
		return msgs, err
	}

	collection, err := r.opts.Directory.CollectionForGroup(ctx, groupID)
	if err != nil {
		collection = ""
	}

	now := r.now().UnixMilli()
	drafts := []Draft{
		{
			Kind:    models.KindSystem,
			Content: fmt.Sprintf("%s has joined the chat.", r.opts.BotName),
		},
		{
			Kind:    models.KindBotResponse,
			Content: "Welcome, holders! This channel is open to wallets that own a token from this collection. Type /help to see what I can do.",
		},
	}

	out := make([]models.Message, 0, len(drafts))
	for _, d := range drafts {
		d.Ref = ulid.Make().String()
		d.GroupID = groupID
		d.CollectionAddress = collection
		d.Sender = r.opts.BotName
		d.Timestamp = now
		d.IsBot = true
		msg, err := r.appendDraft(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}

	r.logger.Info().Str("group_id", groupID).Msg("seeded welcome messages")
	return out, nil
}

// retry runs op with bounded exponential backoff and classifies exhaustion
// as RelayUnavailable. Caller cancellation is returned unchanged.
func (r *Relay) retry(ctx context.Context, opName, groupID string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.MaxAttempts-1)), ctx)

	attempt := 0
	timed := func() error {
		attempt++
		start := time.Now()
		err := op()
		metrics.RelayLatency.WithLabelValues(opName).Observe(time.Since(start).Seconds())
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RelayRetries.Inc()
		r.logger.Warn().Err(err).
			Str("op", opName).
			Str("group_id", groupID).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("canonical store call failed, retrying")
	}

	if err := backoff.RetryNotify(timed, policy, notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error().Err(err).Str("op", opName).Str("group_id", groupID).Int("attempts", attempt).Msg("canonical store unavailable")
		return apperr.Wrap(apperr.KindRelayUnavailable, "message relay is unavailable", err)
	}
	return nil
}
