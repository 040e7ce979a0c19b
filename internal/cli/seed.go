package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	blocksync "github.com/goliatone/go-blocksync"
	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/syncclient"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSeedCmd(app *App) *cobra.Command {
	var (
		pageID   string
		blockID  string
		kind     string
		content  string
		position int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a block on a running backend",
		Example: strings.TrimSpace(`
blocksync seed --page 6f1c2b3e-... --type hero --content '{"title":"Hello"}'
blocksync seed --page 6f1c2b3e-... --type text --position 1 --content '{"body":"..."}'
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := uuid.Parse(strings.TrimSpace(pageID))
			if err != nil {
				return writeErr(cmd, fmt.Errorf("invalid --page: %w", err))
			}
			block := &interfaces.Block{
				PageID:   page,
				Type:     strings.TrimSpace(kind),
				Position: position,
			}
			if strings.TrimSpace(blockID) != "" {
				id, err := uuid.Parse(strings.TrimSpace(blockID))
				if err != nil {
					return writeErr(cmd, fmt.Errorf("invalid --id: %w", err))
				}
				block.ID = id
			}
			block.Content, err = decodeContent(content)
			if err != nil {
				return writeErr(cmd, err)
			}

			cfg := app.config()
			module, err := blocksync.New(cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer module.Close(context.Background())

			client, err := syncclient.New(cfg.Sync.BaseURL,
				syncclient.WithLogger(logging.SyncLogger(module.Container().LoggerProvider())),
			)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sync.RequestTimeout)
			defer cancel()
			created, err := client.CreateBlock(ctx, block)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, created)
		},
	}

	cmd.Flags().StringVar(&pageID, "page", "", "Page ID the block belongs to")
	cmd.Flags().StringVar(&blockID, "id", "", "Block ID (generated when empty)")
	cmd.Flags().StringVar(&kind, "type", "", "Block type")
	cmd.Flags().StringVar(&content, "content", "{}", "Block content as a JSON object")
	cmd.Flags().IntVar(&position, "position", 0, "Position of the block on the page")
	_ = cmd.MarkFlagRequired("page")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func decodeContent(raw string) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()
	var content map[string]any
	if err := decoder.Decode(&content); err != nil {
		return nil, fmt.Errorf("invalid --content: %w", err)
	}
	if content == nil {
		return nil, errors.New("invalid --content: expected a JSON object")
	}
	return content, nil
}
