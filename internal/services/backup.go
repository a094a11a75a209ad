package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jlaffaye/ftp"

	"github.com/wisprad/backend/internal/config"
	"github.com/wisprad/backend/internal/database"
)

// BackupService snapshots the SQLite database nightly at 02:00 into the
// backup directory, optionally mirrors the file to an FTP server, and
// prunes snapshots past the retention window. Disabled when no backup
// directory is configured.
type BackupService struct {
	cfg      *config.Config
	stopChan chan struct{}
}

func NewBackupService(cfg *config.Config) *BackupService {
	return &BackupService{
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start begins the backup scheduler
func (s *BackupService) Start() {
	if s.cfg.BackupDir == "" {
		log.Println("Backup service disabled (BACKUP_DIR not set)")
		return
	}
	if err := os.MkdirAll(s.cfg.BackupDir, 0755); err != nil {
		log.Printf("Backup service disabled: cannot create %s: %v", s.cfg.BackupDir, err)
		return
	}

	log.Printf("Backup service started (dir=%s, retention=%d days)",
		s.cfg.BackupDir, s.cfg.BackupRetention)

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				now := time.Now()
				if now.Hour() == 2 && now.Minute() == 0 {
					s.runBackup()
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the scheduler
func (s *BackupService) Stop() {
	close(s.stopChan)
	log.Println("Backup service stopped")
}

// RunNow triggers an immediate backup, for the manual trigger endpoint
func (s *BackupService) RunNow() (string, error) {
	if s.cfg.BackupDir == "" {
		return "", fmt.Errorf("backup directory not configured")
	}
	if err := os.MkdirAll(s.cfg.BackupDir, 0755); err != nil {
		return "", err
	}
	return s.snapshot()
}

func (s *BackupService) runBackup() {
	filename, err := s.snapshot()
	if err != nil {
		log.Printf("Backup failed: %v", err)
		return
	}

	if s.cfg.BackupFTPHost != "" {
		if err := s.uploadToFTP(filepath.Join(s.cfg.BackupDir, filename), filename); err != nil {
			log.Printf("Backup FTP upload failed: %v", err)
		}
	}

	if s.cfg.BackupRetention > 0 {
		s.pruneOldBackups()
	}
}

// snapshot writes a consistent copy of the live database. VACUUM INTO
// produces a compacted snapshot without blocking writers.
func (s *BackupService) snapshot() (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("radiusd_%s_%s.db", timestamp, uuid.New().String()[:8])
	path := filepath.Join(s.cfg.BackupDir, filename)

	if err := database.DB.Exec("VACUUM INTO ?", path).Error; err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	log.Printf("Backup written: %s (%d bytes)", filename, info.Size())
	return filename, nil
}

// uploadToFTP mirrors a snapshot to the configured FTP server
func (s *BackupService) uploadToFTP(localPath, filename string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BackupFTPHost, s.cfg.BackupFTPPort)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("FTP connection failed: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.BackupFTPUser, s.cfg.BackupFTPPassword); err != nil {
		return fmt.Errorf("FTP login failed: %w", err)
	}

	if path := s.cfg.BackupFTPPath; path != "" && path != "/" {
		if err := conn.ChangeDir(path); err != nil {
			conn.MakeDir(path)
			if err := conn.ChangeDir(path); err != nil {
				return fmt.Errorf("FTP directory change failed: %w", err)
			}
		}
	}

	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := conn.Stor(filename, file); err != nil {
		return fmt.Errorf("FTP upload failed: %w", err)
	}

	log.Printf("Backup uploaded to FTP %s: %s", s.cfg.BackupFTPHost, filename)
	return nil
}

// pruneOldBackups removes local snapshots older than the retention window
func (s *BackupService) pruneOldBackups() {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.BackupRetention)

	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "radiusd_") || !strings.HasSuffix(name, ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.cfg.BackupDir, name))
			log.Printf("Backup pruned: %s", name)
		}
	}
}
