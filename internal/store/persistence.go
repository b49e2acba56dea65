package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// SchemaVersion is the current persistence schema version.
const SchemaVersion = 1

// Persistence defines the interface for the campaign cache.
type Persistence interface {
	// Load reads all cached campaigns.
	Load() ([]model.Campaign, error)

	// Rewrite replaces the cache with cs.
	Rewrite(cs []model.Campaign) error

	// Clear removes all cached campaigns.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	IAMSchemaVersion int   `json:"iam_schema_version"`
	CreatedAt        int64 `json:"created_at"`
}

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// JSONLPersistence implements Persistence using a JSONL file: a schema
// header followed by one campaign per line.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// NewJSONLPersistence creates a new JSONLPersistence.
// Creates the file if it doesn't exist.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	p := &JSONLPersistence{path: path}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := p.writeFile(nil); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	case info.IsDir():
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return p, nil
}

// Path returns the cache file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

// Load reads all cached campaigns. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.Campaign, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPersistenceClosed
	}

	file, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.path, err)
	}
	defer file.Close()

	return readCampaigns(file)
}

func readCampaigns(r io.Reader) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	scanner := bufio.NewScanner(r)

	const maxLineSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.IAMSchemaVersion > 0 {
				if header.IAMSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.IAMSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var c model.Campaign
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		if c.ID != "" {
			campaigns = append(campaigns, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return campaigns, fmt.Errorf("error reading file: %w", err)
	}
	return campaigns, nil
}

// Rewrite replaces the cache file with cs.
func (p *JSONLPersistence) Rewrite(cs []model.Campaign) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	return p.writeFile(cs)
}

// Clear removes all cached campaigns, keeping the header.
func (p *JSONLPersistence) Clear() error {
	return p.Rewrite(nil)
}

// Close marks the persistence closed.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// writeFile writes header and campaigns to a temp file and renames it over
// the cache.
func (p *JSONLPersistence) writeFile(cs []model.Campaign) error {
	tmpPath := p.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(schemaHeader{IAMSchemaVersion: SchemaVersion, CreatedAt: time.Now().Unix()}); err != nil {
		file.Close()
		return err
	}
	for _, c := range cs {
		if err := enc.Encode(c); err != nil {
			file.Close()
			return fmt.Errorf("encode campaign %s: %w", c.ID, err)
		}
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, p.path)
}
