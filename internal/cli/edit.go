package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	blocksync "github.com/goliatone/go-blocksync"
	"github.com/goliatone/go-blocksync/internal/commands/editorcmd"
	"github.com/goliatone/go-blocksync/internal/editor"
	"github.com/goliatone/go-blocksync/internal/filewatch"
	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/refresh"
	"github.com/goliatone/go-blocksync/internal/syncclient"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var errBlockNotOnPage = errors.New("block not found on page")

func newEditCmd(app *App) *cobra.Command {
	var (
		pageID      string
		file        string
		refreshSpec string
		live        bool
		settle      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "edit <block-id>",
		Short: "Edit a block through a local JSON file",
		Long: strings.TrimSpace(`
Open an editing session for a block and mirror its content to a JSON file.
Every write to the file is merged into the draft and saved after the debounce
delay. Commands read from stdin, one per line:

  set <json>   merge a partial JSON object into the draft
  save         save now
  revert       drop local edits and rewrite the file
  refresh      reload the server baseline of the page
  status       print the session state
  content      print the draft
  quit         flush and exit (also on EOF)
`),
		Example: strings.TrimSpace(`
blocksync edit 0b7e... --page 6f1c... --file hero.json
blocksync edit 0b7e... --page 6f1c... --file hero.json --refresh "@every 30s" --live
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blockID, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, fmt.Errorf("invalid block id: %w", err))
			}
			page, err := uuid.Parse(strings.TrimSpace(pageID))
			if err != nil {
				return writeErr(cmd, fmt.Errorf("invalid --page: %w", err))
			}

			cfg := app.config()
			cfg.Refresh.Schedule = strings.TrimSpace(refreshSpec)
			module, err := blocksync.New(cfg)
			if err != nil {
				return writeErr(cmd, err)
			}

			session := &editSession{
				app:    app,
				cmd:    cmd,
				module: module,
				file:   file,
				pageID: page,
			}
			if err := session.open(cmd.Context(), blockID, settle); err != nil {
				_ = module.Close(context.Background())
				return writeErr(cmd, err)
			}
			if err := session.follow(cfg.Refresh.Schedule, live); err != nil {
				session.close(cfg.Sync.FlushTimeout)
				return writeErr(cmd, err)
			}

			runErr := session.run()
			if err := session.close(cfg.Sync.FlushTimeout); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return writeErr(cmd, runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pageID, "page", "", "Page ID of the block")
	cmd.Flags().StringVar(&file, "file", "", "JSON file mirroring the block content")
	cmd.Flags().StringVar(&refreshSpec, "refresh", "", "Cron schedule to reload the server baseline (e.g. \"@every 30s\")")
	cmd.Flags().BoolVar(&live, "live", false, "Follow page events from the backend")
	cmd.Flags().DurationVar(&settle, "settle", filewatch.DefaultSettleDelay, "Quiet period after a file write before it is applied")
	_ = cmd.MarkFlagRequired("page")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// editSession wires one editing session to a file watcher, the command
// dispatcher and the refresher for the lifetime of the edit command.
type editSession struct {
	app    *App
	cmd    *cobra.Command
	module *blocksync.Module
	file   string
	pageID uuid.UUID

	logger    interfaces.Logger
	session   *editor.Session
	watcher   *filewatch.Watcher
	refresher *refresh.Refresher
	handlers  *editorcmd.HandlerSet
	stopLive  context.CancelFunc
	liveDone  chan struct{}
}

func (e *editSession) open(ctx context.Context, blockID uuid.UUID, settle time.Duration) error {
	container := e.module.Container()
	provider := container.LoggerProvider()
	e.logger = logging.ModuleLogger(provider, "blocksync.cli")

	client, err := container.SyncClient()
	if err != nil {
		return err
	}
	page, err := client.FetchPage(ctx, e.pageID)
	if err != nil {
		return err
	}
	var block *interfaces.Block
	for _, candidate := range page.Blocks {
		if candidate != nil && candidate.ID == blockID {
			block = candidate
			break
		}
	}
	if block == nil {
		return fmt.Errorf("%w: block %s, page %s", errBlockNotOnPage, blockID, e.pageID)
	}
	if block.PageID == uuid.Nil {
		block.PageID = e.pageID
	}

	box, err := container.Outbox()
	if err != nil {
		return err
	}
	box.Start(ctx)

	e.session, err = e.module.Open(block)
	if err != nil {
		return err
	}
	if err := filewatch.WriteJSON(e.file, e.session.Content()); err != nil {
		return err
	}

	registry, err := e.module.Sessions()
	if err != nil {
		return err
	}
	e.refresher, err = e.module.Refresher()
	if err != nil {
		return err
	}
	e.handlers, err = editorcmd.Subscribe(editorcmd.Dependencies{
		Sessions:  registry,
		Client:    client,
		Refresher: e.refresher,
	}, provider)
	if err != nil {
		return err
	}

	e.watcher, err = filewatch.New(e.file, e.session,
		filewatch.WithSettleDelay(settle),
		filewatch.WithLogger(logging.ModuleLogger(provider, "blocksync.filewatch")),
		filewatch.WithErrorHandler(func(err error) {
			e.logger.Warn("edit.file.rejected", "path", e.file, "error", err)
		}),
	)
	if err != nil {
		return err
	}
	return e.watcher.Start(context.WithoutCancel(ctx))
}

func (e *editSession) follow(schedule string, live bool) error {
	if schedule != "" {
		if err := e.refresher.Schedule(schedule, e.pageID); err != nil {
			return err
		}
		e.refresher.Start()
	}
	if !live {
		return nil
	}
	client, err := e.module.Container().SyncClient()
	if err != nil {
		return err
	}
	events, ok := client.(*syncclient.Client)
	if !ok {
		return errors.New("live events need the HTTP sync client")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.stopLive = cancel
	e.liveDone = make(chan struct{})
	source := refresh.EventSourceFunc(func(ctx context.Context, pageID uuid.UUID, handler func(interfaces.BlockEvent)) error {
		return events.Subscribe(ctx, pageID, handler)
	})
	go func() {
		defer close(e.liveDone)
		if err := e.refresher.Follow(ctx, source, e.pageID); err != nil {
			e.logger.Warn("edit.live.stopped", "page_id", e.pageID, "error", err)
		}
	}()
	return nil
}

// run executes stdin commands until quit or EOF.
func (e *editSession) run() error {
	scanner := bufio.NewScanner(e.cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, rest, _ := strings.Cut(line, " ")
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := e.execute(name, strings.TrimSpace(rest)); err != nil {
			if werr := writeOut(e.cmd, e.app, map[string]any{"command": name, "error": err.Error()}); werr != nil {
				return werr
			}
		}
	}
	return scanner.Err()
}

func (e *editSession) execute(name, arg string) error {
	ctx := e.cmd.Context()
	blockID := e.session.BlockID()
	switch name {
	case "set":
		content, err := decodeContent(arg)
		if err != nil {
			return err
		}
		if err := dispatcher.Dispatch(ctx, editorcmd.UpdateBlockCommand{BlockID: blockID, Content: content}); err != nil {
			return err
		}
		return e.writeStatus(name)
	case "save":
		if err := dispatcher.Dispatch(ctx, editorcmd.SaveBlockCommand{BlockID: blockID}); err != nil {
			return err
		}
		return e.writeStatus(name)
	case "revert":
		if err := dispatcher.Dispatch(ctx, editorcmd.RevertBlockCommand{BlockID: blockID}); err != nil {
			return err
		}
		if err := filewatch.WriteJSON(e.file, e.session.Content()); err != nil {
			return err
		}
		return e.writeStatus(name)
	case "refresh":
		if err := dispatcher.Dispatch(ctx, editorcmd.RefreshPageCommand{PageID: e.pageID}); err != nil {
			return err
		}
		return e.writeStatus(name)
	case "status":
		return e.writeStatus(name)
	case "content":
		return writeOut(e.cmd, e.app, map[string]any{"command": name, "content": e.session.Content()})
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (e *editSession) writeStatus(command string) error {
	view := snapshotView(e.session.Snapshot())
	view["command"] = command
	return writeOut(e.cmd, e.app, view)
}

// close stops the watchers and closes the module, which flushes the draft
// through the outbox within timeout.
func (e *editSession) close(timeout time.Duration) error {
	if e.stopLive != nil {
		e.stopLive()
		<-e.liveDone
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
	e.handlers.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.module.Close(ctx)
}

func snapshotView(snapshot editor.Snapshot) map[string]any {
	view := map[string]any{
		"block_id": snapshot.BlockID.String(),
		"phase":    snapshot.Phase.String(),
		"state":    string(snapshot.State),
		"dirty":    snapshot.Dirty,
		"saves":    snapshot.Saves,
		"failures": snapshot.Failures,
	}
	if snapshot.LastError != nil {
		view["last_error"] = snapshot.LastError.Error()
	}
	if !snapshot.LastSavedAt.IsZero() {
		view["last_saved_at"] = snapshot.LastSavedAt.UTC().Format(time.RFC3339Nano)
	}
	return view
}
