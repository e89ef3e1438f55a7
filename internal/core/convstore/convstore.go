// Package convstore adapts internal/core/remote's conversation-state
// endpoints into the capability the Dispatcher writes through after
// every FSM step. It never blocks the user-visible reply: every write
// is fire-and-forget from the caller's point of view, and the whole
// store degrades to a no-op when conversation sync is disabled.
package convstore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/remote"
)

// Store is the capability the Dispatcher depends on. RemoteStore and
// NoopStore both satisfy it with the exact same signatures, so disabling
// sync never changes a caller.
type Store interface {
	InitializeConversation(ctx context.Context, tenantID ids.TenantId, user ids.UserRef) (ids.SessionId, error)
	AppendUserMessage(ctx context.Context, sessionID ids.SessionId, text string)
	AppendBotMessage(ctx context.Context, sessionID ids.SessionId, text string)
	SnapshotState(ctx context.Context, sessionID ids.SessionId, intent string, contextPatch map[string]interface{})
	LinkOrder(ctx context.Context, sessionID ids.SessionId, orderID ids.OrderId)
	Reset(ctx context.Context, sessionID ids.SessionId)
	Extend(ctx context.Context, sessionID ids.SessionId)
	End(ctx context.Context, sessionID ids.SessionId)
}

// RemoteStore is the real Store, backed by a shared remote.Client. Every
// write after InitializeConversation uses its own bounded timeout and
// only logs on failure — per spec, ConversationStore failures never
// affect the user-visible flow.
type RemoteStore struct {
	client       *remote.Client
	writeTimeout time.Duration
}

// New builds a RemoteStore. writeTimeout <= 0 uses a 5s default, generous
// enough for a fire-and-forget write without risking goroutine pileup.
func New(client *remote.Client, writeTimeout time.Duration) *RemoteStore {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &RemoteStore{client: client, writeTimeout: writeTimeout}
}

// InitializeConversation is the one synchronous call in the Store: the
// Dispatcher needs the SessionId back before it can do anything else
// with this conversation, so it is not fire-and-forget.
func (r *RemoteStore) InitializeConversation(ctx context.Context, tenantID ids.TenantId, user ids.UserRef) (ids.SessionId, error) {
	state, err := r.client.CreateConversation(ctx, tenantID, user)
	if err != nil {
		return "", err
	}
	return state.SessionID, nil
}

func (r *RemoteStore) AppendUserMessage(ctx context.Context, sessionID ids.SessionId, text string) {
	r.fireAndForget(ctx, "append user message", func(ctx context.Context) error {
		return r.client.AppendConversationMessage(ctx, sessionID, "user", text)
	})
}

func (r *RemoteStore) AppendBotMessage(ctx context.Context, sessionID ids.SessionId, text string) {
	r.fireAndForget(ctx, "append bot message", func(ctx context.Context) error {
		return r.client.AppendConversationMessage(ctx, sessionID, "bot", text)
	})
}

func (r *RemoteStore) SnapshotState(ctx context.Context, sessionID ids.SessionId, intent string, contextPatch map[string]interface{}) {
	r.fireAndForget(ctx, "snapshot intent", func(ctx context.Context) error {
		return r.client.UpdateConversationIntent(ctx, sessionID, intent)
	})
	r.fireAndForget(ctx, "snapshot context", func(ctx context.Context) error {
		return r.client.UpdateConversationContext(ctx, sessionID, contextPatch)
	})
}

func (r *RemoteStore) LinkOrder(ctx context.Context, sessionID ids.SessionId, orderID ids.OrderId) {
	r.fireAndForget(ctx, "link order", func(ctx context.Context) error {
		return r.client.LinkConversationOrder(ctx, sessionID, orderID)
	})
}

func (r *RemoteStore) Reset(ctx context.Context, sessionID ids.SessionId) {
	r.fireAndForget(ctx, "reset conversation", func(ctx context.Context) error {
		return r.client.ResetConversation(ctx, sessionID)
	})
}

func (r *RemoteStore) Extend(ctx context.Context, sessionID ids.SessionId) {
	r.fireAndForget(ctx, "extend conversation", func(ctx context.Context) error {
		return r.client.ExtendConversation(ctx, sessionID)
	})
}

func (r *RemoteStore) End(ctx context.Context, sessionID ids.SessionId) {
	r.fireAndForget(ctx, "end conversation", func(ctx context.Context) error {
		return r.client.EndConversation(ctx, sessionID)
	})
}

func (r *RemoteStore) fireAndForget(ctx context.Context, op string, call func(context.Context) error) {
	writeCtx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := call(writeCtx); err != nil {
		log.Error().Err(err).Str("op", op).Msg("convstore write failed, ignoring")
	}
	_ = ctx
}

// NoopStore satisfies Store without talking to the backend, used when
// CONV_SYNC_ENABLED=false. InitializeConversation still needs a
// SessionId for the Dispatcher to key its in-memory map by, so it mints
// one locally instead of round-tripping to the remote.
type NoopStore struct{}

func NewNoop() *NoopStore { return &NoopStore{} }

func (NoopStore) InitializeConversation(_ context.Context, _ ids.TenantId, user ids.UserRef) (ids.SessionId, error) {
	return ids.SessionId(user.String()), nil
}

func (NoopStore) AppendUserMessage(context.Context, ids.SessionId, string)                    {}
func (NoopStore) AppendBotMessage(context.Context, ids.SessionId, string)                      {}
func (NoopStore) SnapshotState(context.Context, ids.SessionId, string, map[string]interface{}) {}
func (NoopStore) LinkOrder(context.Context, ids.SessionId, ids.OrderId)                        {}
func (NoopStore) Reset(context.Context, ids.SessionId)                                         {}
func (NoopStore) Extend(context.Context, ids.SessionId)                                        {}
func (NoopStore) End(context.Context, ids.SessionId)                                            {}
