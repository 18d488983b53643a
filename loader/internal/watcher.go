package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type FileState int

const (
	FileIngested FileState = iota
	FileRejected
)

type WatcherConfig struct {
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	PollInterval   time.Duration
}

// FileWatcher polls a drop directory and hands out files that have been
// present for at least MonitoringTime, once each.
type FileWatcher struct {
	cfg    WatcherConfig
	logger *logrus.Entry

	fileMutex       sync.Mutex
	fileFirstSeen   map[string]time.Time
	filesProcessing map[string]bool
}

func NewFileWatcher(cfg WatcherConfig, logger *logrus.Entry) (*FileWatcher, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, fmt.Errorf("create loader directories: %w", err)
	}
	return &FileWatcher{
		cfg:             cfg,
		logger:          logger,
		fileFirstSeen:   make(map[string]time.Time),
		filesProcessing: make(map[string]bool),
	}, nil
}

// WatchFile sends ready files on fileChan until ctx is cancelled.
func (w *FileWatcher) WatchFile(ctx context.Context, fileChan chan<- string) {
	w.logger.WithField("dir", w.cfg.SourceDir).Info("start monitoring folder")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	defer w.logger.Info("file watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.scan() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// scan returns the files that just became ready and forgets files that
// disappeared.
func (w *FileWatcher) scan() []string {
	files, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		w.logger.WithError(err).Error("error while reading source directory")
		return nil
	}

	w.fileMutex.Lock()
	defer w.fileMutex.Unlock()

	now := time.Now()
	current := make(map[string]bool, len(files))
	var ready []string

	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		path := filepath.Join(w.cfg.SourceDir, file.Name())
		current[path] = true

		if w.filesProcessing[path] {
			continue
		}
		firstSeen, seen := w.fileFirstSeen[path]
		if !seen {
			w.fileFirstSeen[path] = now
			w.logger.WithField("file", path).Debug("new file detected")
			continue
		}
		if now.Sub(firstSeen) >= w.cfg.MonitoringTime {
			w.filesProcessing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range w.fileFirstSeen {
		if !current[path] {
			delete(w.fileFirstSeen, path)
			delete(w.filesProcessing, path)
		}
	}
	return ready
}

// Done moves a handed-out file to the archive or bad directory and stops
// tracking it.
func (w *FileWatcher) Done(path string, state FileState) {
	if err := w.MoveToArchive(path, state); err != nil {
		w.logger.WithError(err).WithField("file", path).Error("failed to move file")
	}

	w.fileMutex.Lock()
	delete(w.filesProcessing, path)
	delete(w.fileFirstSeen, path)
	w.fileMutex.Unlock()
}

// MoveToArchive moves the file into a dated folder under the archive or bad
// directory, adding a numeric suffix on name clashes.
func (w *FileWatcher) MoveToArchive(filePath string, state FileState) error {
	root := w.cfg.ArchiveDir
	if state == FileRejected {
		root = w.cfg.BadDir
	}

	destDir := filepath.Join(root, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(filePath)
		base := strings.TrimSuffix(filepath.Base(filePath), ext)
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := os.Rename(filePath, destPath); err == nil {
		return nil
	}
	// rename fails across filesystems
	if err := copyFile(filePath, destPath); err != nil {
		return err
	}
	return os.Remove(filePath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
