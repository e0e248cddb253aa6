package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// ScanWorker triggers folder rescans and reports sync status
type ScanWorker struct {
	cfg     *Config
	client  *Client
	store   *ScanStore // nil when history is disabled
	tracker *TaskTracker
	logger  *slog.Logger
}

// newScanWorker creates a new scan worker
func newScanWorker(cfg *Config, client *Client, store *ScanStore, tracker *TaskTracker, logger *slog.Logger) *ScanWorker {
	return &ScanWorker{
		cfg:     cfg,
		client:  client,
		store:   store,
		tracker: tracker,
		logger:  logger,
	}
}

// TriggerScans triggers a rescan for each folder in the set and spawns a
// tracked status check per trigger. It never fails: every remote problem
// is logged and contained, and the next scheduled cycle is the retry.
func (w *ScanWorker) TriggerScans(ctx context.Context, folders []string) {
	for _, folder := range folders {
		folder = strings.TrimSpace(folder)
		if folder == "" {
			continue
		}

		w.triggerScan(ctx, folder)

		selection := folder
		w.tracker.Spawn("status:"+folder, func(taskCtx context.Context) {
			w.CheckSyncStatus(taskCtx, []string{selection}, w.cfg.statusDelay())
		})
	}
}

func (w *ScanWorker) triggerScan(ctx context.Context, folder string) {
	if w.cfg.DryRun {
		w.logger.Info("[dry-run] Would trigger scan", "folder", folder, "url", w.client.ScanURL(folder))
		w.recordEvent(folder, outcomeDryRun, "")
		return
	}

	status, err := w.client.PostScan(ctx, folder)
	var apiErr *apiError
	switch {
	case isTimeout(err):
		// Probable success: Syncthing holds the scan request open while
		// it works, so the trigger was most likely accepted.
		w.logger.Warn("Scan trigger timed out; Syncthing may still be processing", "folder", folder)
		w.recordEvent(folder, outcomeTimeout, err.Error())
	case errors.As(err, &apiErr):
		w.logger.Error("Scan trigger failed", "folder", folder, "status", apiErr.Status, "body", apiErr.Body)
		w.recordEvent(folder, outcomeError, apiErr.Error())
	case err != nil:
		w.logger.Error("Failed to reach Syncthing API", "folder", folder, "error", err)
		w.recordEvent(folder, outcomeError, err.Error())
	default:
		w.logger.Info("Triggered scan", "folder", folder, "status", status)
		w.recordEvent(folder, outcomeTriggered, "")
	}
}

// CheckSyncStatus waits for the scan to get going, resolves the folder
// selection, and logs one status line per folder. All remote errors are
// logged and swallowed; the caller never sees a failure.
func (w *ScanWorker) CheckSyncStatus(ctx context.Context, folders []string, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	folderIDs := w.resolveFolders(ctx, folders)
	for _, id := range folderIDs {
		if ctx.Err() != nil {
			return
		}
		w.checkFolder(ctx, id)
	}
}

// resolveFolders turns the folder selection into concrete folder IDs. A
// wildcard anywhere in the selection means "all folders known to
// Syncthing right now"; otherwise blanks and stray wildcards are dropped.
func (w *ScanWorker) resolveFolders(ctx context.Context, folders []string) []string {
	wantAll := false
	for _, f := range folders {
		if strings.TrimSpace(f) == wildcardFolder {
			wantAll = true
			break
		}
	}

	if !wantAll {
		out := make([]string, 0, len(folders))
		for _, f := range folders {
			f = strings.TrimSpace(f)
			if f != "" && f != wildcardFolder {
				out = append(out, f)
			}
		}
		return out
	}

	ids, err := w.client.GetFolderIDs(ctx)
	if err != nil {
		if isTimeout(err) {
			w.logger.Warn("Status check timed out fetching folder list")
		} else {
			w.logger.Warn("Failed to fetch folder list for wildcard status check", "error", err)
		}
		return nil
	}
	if len(ids) == 0 {
		w.logger.Warn("No folders returned by Syncthing config; nothing to report")
		return nil
	}
	return ids
}

func (w *ScanWorker) checkFolder(ctx context.Context, folder string) {
	st, err := w.client.GetFolderStatus(ctx, folder)
	var apiErr *apiError
	switch {
	case isTimeout(err):
		w.logger.Warn("Folder status check timed out", "folder", folder)
		return
	case errors.As(err, &apiErr):
		w.logger.Warn("Folder status check failed", "folder", folder, "status", apiErr.Status, "error", apiErr.Body)
		return
	case err != nil:
		w.logger.Warn("Folder status check failed", "folder", folder, "error", err)
		return
	}

	w.logger.Info("Folder status",
		"folder", folder,
		"state", st.State,
		"need_bytes", st.NeedBytes,
		"in_sync_bytes", st.InSyncBytes,
	)

	if w.store != nil {
		check := &StatusCheckRecord{
			Folder:      folder,
			State:       st.State,
			NeedBytes:   st.NeedBytes,
			InSyncBytes: st.InSyncBytes,
			CheckedAt:   time.Now(),
		}
		if err := w.store.InsertStatusCheck(check); err != nil {
			w.logger.Error("Failed to record status check", "folder", folder, "error", err)
		}
	}
}

func (w *ScanWorker) recordEvent(folder, outcome, detail string) {
	if w.store == nil {
		return
	}
	event := &ScanEventRecord{
		Folder:  folder,
		FiredAt: time.Now(),
		DryRun:  w.cfg.DryRun,
		Outcome: outcome,
		Detail:  detail,
	}
	if err := w.store.InsertScanEvent(event); err != nil {
		w.logger.Error("Failed to record scan event", "folder", folder, "error", err)
	}
}
