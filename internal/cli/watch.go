package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimtrack/internal/logging"
	"claimtrack/internal/model"
	"claimtrack/internal/render"
	"claimtrack/internal/session"
	"claimtrack/internal/store"
)

var watchHTMLOut string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Track claims in a document as it is edited",
	Long: `Open a live claim-tracking session on a wikitext document:
- Watch the file for changes and apply each save as an edit
- Keep claim spans, ids, and classifications aligned across edits
- Render through the companion service with debounce and local fallback
- Mirror the claim set next to the document after every change

Example:
  claimtrack watch article.wiki
  claimtrack watch article.wiki --html-out preview.html`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchHTMLOut, "html-out", "", "write the latest rendered output to this file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(verbose || cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	current := string(raw)

	persisted, err := store.LoadMirror(store.MirrorPath(path))
	if err != nil {
		logger.Warn("discarding malformed claim mirror", zap.Error(err))
		persisted = nil
	}

	var cache render.Cache
	if cfg.Cache.Enabled {
		cache = render.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}
	client := render.NewClient(cfg.Render, cache, logger)

	sess := session.Open(cfg, current, persisted, client, logger)
	defer sess.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (%d claims). Ctrl-C to stop.\n", path, len(sess.Claims()))

	for {
		select {
		case <-ctx.Done():
			return saveMirror(sess, path)

		case ev, ok := <-watcher.Events:
			if !ok {
				return saveMirror(sess, path)
			}
			// Editors that save via rename drop the watch; re-arm it
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				_ = watcher.Add(path)
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("cannot re-read document", zap.Error(err))
				continue
			}
			edit, changed := diffEdit(current, string(raw))
			if !changed {
				continue
			}
			if err := sess.ApplyEdit(edit, string(raw)); err != nil {
				logger.Warn("edit rejected", zap.Error(err))
				continue
			}
			current = string(raw)

		case err, ok := <-watcher.Errors:
			if !ok {
				return saveMirror(sess, path)
			}
			logger.Warn("file watcher error", zap.Error(err))

		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case session.ClaimsChanged:
				fmt.Fprintf(os.Stderr, "  rev %d: %d claims\n", e.DocRevision, e.Count)
				if err := saveMirror(sess, path); err != nil {
					logger.Warn("cannot write claim mirror", zap.Error(err))
				}
			case session.RenderApplied:
				if e.Fallback {
					fmt.Fprintf(os.Stderr, "  rendered rev %d (local fallback)\n", e.Revision)
				} else {
					fmt.Fprintf(os.Stderr, "  rendered rev %d\n", e.Revision)
				}
				if watchHTMLOut != "" {
					if err := os.WriteFile(watchHTMLOut, []byte(e.HTML), 0644); err != nil {
						logger.Warn("cannot write rendered output", zap.Error(err))
					}
				}
			}
		}
	}
}

// saveMirror persists the session's current claim set next to the document
func saveMirror(sess *session.Session, path string) error {
	set := sess.Snapshot(path)
	if set == nil {
		return nil
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal claim set: %w", err)
	}
	if err := os.WriteFile(store.MirrorPath(path), data, 0644); err != nil {
		return fmt.Errorf("write claim mirror: %w", err)
	}
	return nil
}

// diffEdit reduces two document states to the single contiguous edit between
// them: longest common prefix and suffix, change in the middle.
func diffEdit(before, after string) (model.Edit, bool) {
	if before == after {
		return model.Edit{}, false
	}
	prefix := 0
	for prefix < len(before) && prefix < len(after) && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(before)-prefix && suffix < len(after)-prefix &&
		before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}
	return model.Edit{
		Start:  prefix,
		OldLen: len(before) - prefix - suffix,
		NewLen: len(after) - prefix - suffix,
	}, true
}
