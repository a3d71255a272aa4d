package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// renameSettle is how long the watcher waits after a rename burst before
// reconciling the index against the vault.
const renameSettle = 200 * time.Millisecond

// watcher mirrors vault changes into the contact index.
type watcher struct {
	db        *DB
	store     storage.Provider
	vaultRoot string
	logger    *slog.Logger
	cb        EventCallback
}

// Watch starts an fsnotify watcher on the vault root and processes contact
// note changes until ctx is cancelled. cb (if non-nil) fires after each
// successful index mutation.
//
// Directories created at runtime join the watch list. Renames fire on the
// old path only, so a settle timer schedules a reconciliation pass that
// removes stale entries and picks up the new paths.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := watchTree(fw, vaultRoot); err != nil {
		return err
	}

	wa := &watcher{db: db, store: store, vaultRoot: vaultRoot, logger: logger, cb: cb}
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var settle *time.Timer
	var settleCh <-chan time.Time
	scheduleReconcile := func() {
		if settle == nil {
			settle = time.NewTimer(renameSettle)
			settleCh = settle.C
		} else {
			settle.Reset(renameSettle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			wa.reconcileVault()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			wa.handleEvent(fw, ev, scheduleReconcile)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (wa *watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, scheduleReconcile func()) {
	absPath := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := watchTree(fw, absPath); addErr != nil {
				wa.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			}
			wa.indexNewDir(absPath)
			return
		}
	}

	// Only contact notes matter from here on.
	if !strings.HasSuffix(absPath, ".md") {
		return
	}
	rel, relErr := filepath.Rel(wa.vaultRoot, absPath)
	if relErr != nil {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		wa.indexChanged(rel, kind)

	case ev.Op&fsnotify.Remove != 0:
		wa.dropContact(rel, "delete")

	case ev.Op&fsnotify.Rename != 0:
		// Rename fires on the old path only; the new path arrives as a
		// separate Create (when it lands inside a watched dir). Drop the
		// old entry now and let the settle pass catch stragglers.
		wa.dropContact(rel, "rename")
		scheduleReconcile()
	}
}

// indexChanged reindexes one note. Writes that leave the content identical
// (the sync engine rewriting a converged note, editor fsync noise) are
// detected by checksum and produce neither an index write nor an event.
func (wa *watcher) indexChanged(rel, kind string) {
	data, err := wa.store.Read(rel)
	if err != nil {
		wa.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if prev, err := wa.db.GetChecksum(rel); err == nil && prev == checksum.Sum(data) {
		return
	}
	if err := IndexNote(wa.db, rel, data); err != nil {
		wa.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	wa.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	wa.emit(kind, rel)
}

func (wa *watcher) dropContact(rel, cause string) {
	if err := wa.db.DeleteContact(rel); err != nil {
		wa.logger.Warn("watcher: "+cause+" failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	wa.logger.Debug("watcher: removed", slog.String("path", rel), slog.String("cause", cause))
	wa.emit("deleted", rel)
}

func (wa *watcher) emit(kind, rel string) {
	if wa.cb != nil {
		wa.cb(kind, rel)
	}
}

// reconcileVault diffs the index against the vault: entries without a file
// on disk are removed, files missing or stale in the index are reindexed.
func (wa *watcher) reconcileVault() {
	indexed, err := wa.db.AllChecksums()
	if err != nil {
		wa.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := wa.store.List("")
	if err != nil {
		wa.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range indexed {
		if _, ok := disk[p]; !ok {
			if err := wa.db.DeleteContact(p); err == nil {
				wa.logger.Debug("reconcile: removed stale", slog.String("path", p))
				wa.emit("deleted", p)
			}
		}
	}

	for p, cs := range disk {
		if indexed[p] == cs {
			continue
		}
		data, err := wa.store.Read(p)
		if err != nil {
			continue
		}
		if err := IndexNote(wa.db, p, data); err == nil {
			wa.logger.Debug("reconcile: indexed", slog.String("path", p))
			wa.emit("created", p)
		}
	}
}

// indexNewDir indexes contact notes already present in a directory that
// just joined the watch list (e.g. a folder moved into the vault).
func (wa *watcher) indexNewDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(wa.vaultRoot, path)
		if relErr != nil {
			return nil
		}
		wa.indexChanged(rel, "created")
		return nil
	})
}

// watchTree adds root and all its subdirectories to the watcher.
func watchTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
