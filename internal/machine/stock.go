package machine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
)

// InstallStockRules adds the default rule set shipped with the hub.
//
// The directories are scanned in order and the first one that exists
// wins; later directories are ignored even if the chosen one is empty.
// Every regular file in the chosen directory is added as an enabled
// machine keyed by its base name (extension stripped). Rules that
// already exist are skipped silently - stock installation runs on every
// startup and must not disturb user state.
func (r *Registry) InstallStockRules(ctx context.Context, dirs []string) error {
	dir := firstExistingDir(dirs)
	if dir == "" {
		r.logger.Debug("no stock rule directory present", "searched", dirs)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	installed := 0
	for _, name := range names {
		spec, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			r.logger.Error("stock rule unreadable", "file", name, "error", readErr)
			continue
		}

		id := ruleID(name)
		err := r.AddMachine(ctx, id, string(spec), true)
		switch {
		case err == nil:
			installed++
		case errors.Is(err, ErrMachineExists):
			// Already installed on a previous run.
		default:
			r.logger.Error("stock rule install failed", "id", id, "error", err)
		}
	}

	r.logger.Info("stock rules installed", "dir", dir, "count", installed)
	return nil
}

// firstExistingDir returns the first directory in the list that exists.
func firstExistingDir(dirs []string) string {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// ruleID derives a machine id from a rule file name by stripping the
// extension ("morning-lights.rule" -> "morning-lights").
func ruleID(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
