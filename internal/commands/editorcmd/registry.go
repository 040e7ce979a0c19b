package editorcmd

import (
	"errors"

	"github.com/goliatone/go-blocksync/internal/commands"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-command/dispatcher"
)

// Dependencies are the collaborators the editor commands act on. Refresher
// may be nil, in which case no refresh handler is built.
type Dependencies struct {
	Sessions  Sessions
	Client    interfaces.SyncClient
	Refresher PageRefresher
}

// HandlerSet groups the handlers built by Subscribe.
type HandlerSet struct {
	Save    *SaveBlockHandler
	Update  *UpdateBlockHandler
	Revert  *RevertBlockHandler
	Reorder *ReorderBlocksHandler
	Refresh *RefreshPageHandler

	subscriptions []dispatcher.Subscription
}

// Unsubscribe removes every handler from the dispatcher.
func (s *HandlerSet) Unsubscribe() {
	if s == nil {
		return
	}
	for _, sub := range s.subscriptions {
		sub.Unsubscribe()
	}
	s.subscriptions = nil
}

// Subscribe builds the editor command handlers and subscribes them to the
// go-command dispatcher, so callers issue commands with dispatcher.Dispatch.
func Subscribe(deps Dependencies, provider interfaces.LoggerProvider) (*HandlerSet, error) {
	if deps.Sessions == nil {
		return nil, errors.New("editor command registration: sessions are required")
	}
	if deps.Client == nil {
		return nil, errors.New("editor command registration: sync client is required")
	}

	logger := commands.CommandLogger(provider, "editor")
	set := &HandlerSet{
		Save:    NewSaveBlockHandler(deps.Sessions, logger),
		Update:  NewUpdateBlockHandler(deps.Sessions, logger),
		Revert:  NewRevertBlockHandler(deps.Sessions, logger),
		Reorder: NewReorderBlocksHandler(deps.Client, logger),
	}
	set.subscriptions = append(set.subscriptions,
		dispatcher.SubscribeCommand(set.Save),
		dispatcher.SubscribeCommand(set.Update),
		dispatcher.SubscribeCommand(set.Revert),
		dispatcher.SubscribeCommand(set.Reorder),
	)
	if deps.Refresher != nil {
		set.Refresh = NewRefreshPageHandler(deps.Refresher, logger)
		set.subscriptions = append(set.subscriptions, dispatcher.SubscribeCommand(set.Refresh))
	}
	return set, nil
}
