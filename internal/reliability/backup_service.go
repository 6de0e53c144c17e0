// Package reliability backs up the databases and keeps them healthy.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/events"
	"github.com/rs/zerolog"
)

const (
	archivePrefix     = "holdings-backup-"
	archiveSuffix     = ".tar.gz"
	archiveTimeLayout = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	metadataVersion   = "1"

	// Kept regardless of age, locally and remotely
	minBackupsToKeep = 3
)

// BackupMetadata describes the contents of a backup archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database file in a backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupResult reports a completed backup
type BackupResult struct {
	Archive       string        `json:"archive"`
	Path          string        `json:"path"`
	SizeBytes     int64         `json:"size_bytes"`
	Uploaded      bool          `json:"uploaded"`
	PrunedLocal   int           `json:"pruned_local"`
	PrunedRemote  int           `json:"pruned_remote"`
	Duration      time.Duration `json:"duration"`
	DatabaseCount int           `json:"database_count"`
}

// BackupService writes consistent copies of the databases into a tar.gz
// archive under dataDir/backups and optionally ships it to object storage.
type BackupService struct {
	databases     []*database.DB
	backupDir     string
	store         ObjectStore
	retentionDays int
	events        *events.Manager
	now           func() time.Time
	log           zerolog.Logger
}

// NewBackupService creates a backup service. store may be nil, in which case
// archives stay local.
func NewBackupService(
	databases []*database.DB,
	dataDir string,
	store ObjectStore,
	retentionDays int,
	eventManager *events.Manager,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases:     databases,
		backupDir:     filepath.Join(dataDir, "backups"),
		store:         store,
		retentionDays: retentionDays,
		events:        eventManager,
		now:           time.Now,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// RemoteEnabled reports whether archives are uploaded
func (s *BackupService) RemoteEnabled() bool {
	return s.store != nil
}

// Run creates a backup archive, uploads it when remote storage is configured
// and rotates old archives
func (s *BackupService) Run(ctx context.Context) (*BackupResult, error) {
	start := s.now()
	s.log.Info().Int("databases", len(s.databases)).Msg("Starting backup")

	stamp := start.UTC().Format(archiveTimeLayout)
	stagingDir := filepath.Join(s.backupDir, "staging-"+stamp)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp: start.UTC(),
		Version:   metadataVersion,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		path := filepath.Join(stagingDir, filename)

		if err := db.BackupTo(ctx, path); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s backup: %w", db.Name(), err)
		}

		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		s.log.Debug().Str("database", db.Name()).Int64("size_bytes", info.Size()).Msg("Database copied")
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := archivePrefix + stamp + archiveSuffix
	archivePath := filepath.Join(s.backupDir, archiveName)

	files := make([]string, 0, len(metadata.Databases)+1)
	for _, dbMeta := range metadata.Databases {
		files = append(files, dbMeta.Filename)
	}
	files = append(files, metadataFilename)

	if err := createArchive(archivePath, stagingDir, files); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	result := &BackupResult{
		Archive:       archiveName,
		Path:          archivePath,
		SizeBytes:     archiveInfo.Size(),
		DatabaseCount: len(metadata.Databases),
	}

	if s.store != nil {
		if err := s.upload(ctx, archivePath, archiveName); err != nil {
			return nil, err
		}
		result.Uploaded = true

		pruned, err := s.rotateRemote(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("Remote backup rotation failed")
		}
		result.PrunedRemote = pruned
	}

	pruned, err := s.rotateLocal()
	if err != nil {
		s.log.Warn().Err(err).Msg("Local backup rotation failed")
	}
	result.PrunedLocal = pruned
	result.Duration = s.now().Sub(start)

	s.log.Info().
		Str("archive", archiveName).
		Int64("size_bytes", result.SizeBytes).
		Bool("uploaded", result.Uploaded).
		Dur("duration", result.Duration).
		Msg("Backup completed")

	s.events.Emit("reliability", &events.BackupCompletedData{
		Archive:   archiveName,
		SizeBytes: result.SizeBytes,
		Uploaded:  result.Uploaded,
		Duration:  result.Duration.Seconds(),
	})

	return result, nil
}

func (s *BackupService) upload(ctx context.Context, path, key string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	return s.store.Upload(ctx, key, file)
}

// ListLocal returns the local archives, newest first
func (s *BackupService) ListLocal() ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return []ObjectInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	archives := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := archiveTime(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, ObjectInfo{Key: entry.Name(), SizeBytes: info.Size(), LastModified: ts})
	}

	sortNewestFirst(archives)
	return archives, nil
}

func (s *BackupService) rotateLocal() (int, error) {
	archives, err := s.ListLocal()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, archive := range s.expired(archives) {
		if err := os.Remove(filepath.Join(s.backupDir, archive.Key)); err != nil {
			s.log.Error().Err(err).Str("archive", archive.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *BackupService) rotateRemote(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return 0, err
	}

	archives := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := archiveTime(obj.Key)
		if !ok {
			continue
		}
		obj.LastModified = ts
		archives = append(archives, obj)
	}
	sortNewestFirst(archives)

	deleted := 0
	for _, archive := range s.expired(archives) {
		if err := s.store.Delete(ctx, archive.Key); err != nil {
			s.log.Error().Err(err).Str("key", archive.Key).Msg("Failed to delete old remote backup")
			continue
		}
		s.log.Info().Str("key", archive.Key).Msg("Deleted old remote backup")
		deleted++
	}
	return deleted, nil
}

// expired returns the archives past retention, never touching the newest
// minBackupsToKeep. archives must be sorted newest first.
func (s *BackupService) expired(archives []ObjectInfo) []ObjectInfo {
	if s.retentionDays <= 0 || len(archives) <= minBackupsToKeep {
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	var out []ObjectInfo
	for _, archive := range archives[minBackupsToKeep:] {
		if archive.LastModified.Before(cutoff) {
			out = append(out, archive)
		}
	}
	return out
}

// VerifyArchive reads a backup archive and checks every database file against
// the checksums recorded in its metadata
func VerifyArchive(path string) (*BackupMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gz.Close()

	var metadata *BackupMetadata
	checksums := make(map[string]string)

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}

		if header.Name == metadataFilename {
			metadata = &BackupMetadata{}
			if err := json.NewDecoder(tr).Decode(metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
			continue
		}

		hash := sha256.New()
		if _, err := io.Copy(hash, tr); err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", header.Name, err)
		}
		checksums[header.Name] = fmt.Sprintf("sha256:%x", hash.Sum(nil))
	}

	if metadata == nil {
		return nil, fmt.Errorf("archive has no %s", metadataFilename)
	}

	for _, db := range metadata.Databases {
		got, ok := checksums[db.Filename]
		if !ok {
			return nil, fmt.Errorf("archive is missing %s", db.Filename)
		}
		if got != db.Checksum {
			return nil, fmt.Errorf("checksum mismatch for %s: expected %s, got %s", db.Filename, db.Checksum, got)
		}
	}

	return metadata, nil
}

func archiveTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	ts, err := time.Parse(archiveTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func sortNewestFirst(archives []ObjectInfo) {
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].LastModified.After(archives[j].LastModified)
	})
}

// fileChecksum calculates the SHA256 checksum of a file
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes the named files of sourceDir into a tar.gz at archivePath
func createArchive(archivePath, sourceDir string, filenames []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
