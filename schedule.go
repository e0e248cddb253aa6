package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// wildcardFolder selects every folder known to Syncthing at the time it
// is resolved.
const wildcardFolder = "*"

// cronParser accepts strict 5-field expressions (minute, hour, day of
// month, month, day of week). No descriptors, no seconds field.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// folderSchedule pairs a folder with its cron expression. Order matters:
// it is the declaration order from the folder_cron mapping and breaks
// ties between schedules firing at the same instant.
type folderSchedule struct {
	Folder string
	Expr   string
}

// scheduleEntry is one merged schedule: a cron expression applied to a
// fixed folder set. Entries are built once at startup and immutable.
type scheduleEntry struct {
	Expr    string
	Folders []string
	sched   cron.Schedule
}

// next returns the first fire time strictly after t, evaluated against
// local wall-clock time.
func (e scheduleEntry) next(t time.Time) time.Time {
	return e.sched.Next(t)
}

// parseCronExpr parses a 5-field cron expression
func parseCronExpr(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// parseFolderCron parses the newline-delimited "folderId: <cron expr>"
// mapping. Blank lines and comment lines are skipped. A repeated folder
// updates the earlier entry in place.
func parseFolderCron(raw string) ([]folderSchedule, error) {
	var out []folderSchedule
	index := map[string]int{}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		folder, expr, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("invalid folder_cron line %q, expected 'folderId: <cron expr>'", line)
		}
		folder = strings.TrimSpace(folder)
		expr = strings.TrimSpace(expr)
		if folder == "" || expr == "" {
			return nil, fmt.Errorf("invalid folder_cron line %q, expected 'folderId: <cron expr>'", line)
		}

		if i, ok := index[folder]; ok {
			out[i].Expr = expr
			continue
		}
		index[folder] = len(out)
		out = append(out, folderSchedule{Folder: folder, Expr: expr})
	}

	return out, nil
}

// formatFolderCron renders the mapping back into its line format. Parsing
// the result yields the identical mapping.
func formatFolderCron(entries []folderSchedule) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Folder+": "+e.Expr)
	}
	return strings.Join(lines, "\n")
}

// buildSchedules merges the global schedule (declared first) with the
// per-folder schedules in declaration order. A malformed expression
// aborts startup.
func buildSchedules(cfg *Config, perFolder []folderSchedule) ([]scheduleEntry, error) {
	var entries []scheduleEntry

	if cfg.Cron != "" {
		sched, err := parseCronExpr(cfg.Cron)
		if err != nil {
			return nil, err
		}
		entries = append(entries, scheduleEntry{
			Expr:    cfg.Cron,
			Folders: cfg.GlobalFolders(),
			sched:   sched,
		})
	}

	for _, fs := range perFolder {
		sched, err := parseCronExpr(fs.Expr)
		if err != nil {
			return nil, fmt.Errorf("folder %s: %w", fs.Folder, err)
		}
		entries = append(entries, scheduleEntry{
			Expr:    fs.Expr,
			Folders: []string{fs.Folder},
			sched:   sched,
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no schedules configured (check ST_CRON / ST_FOLDER_CRON)")
	}

	return entries, nil
}
