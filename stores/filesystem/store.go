package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowsmartly-studio/core"

	"github.com/sirupsen/logrus"
)

// fsStore persists each design as one JSON file under basePath/ownerID/.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) ownerPath(ownerID string) string {
	return filepath.Join(s.basePath, ownerID)
}

// designPath validates that the resolved file stays inside the owner's
// directory, so a crafted id cannot escape it.
func (s *fsStore) designPath(ownerID, id string) (string, error) {
	ownerPath := s.ownerPath(ownerID)
	absOwner, err := filepath.Abs(ownerPath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(ownerPath, id))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absOwner+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFile, nil
}

func (s *fsStore) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	ownerPath := s.ownerPath(ownerID)
	log := logrus.WithField("owner_id", ownerID).WithField("path", ownerPath)

	files, err := os.ReadDir(ownerPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("Owner directory does not exist, returning empty list.")
			return []*core.Design{}, nil
		}
		log.WithError(err).Error("Failed to read owner directory")
		return nil, err
	}

	designs := make([]*core.Design, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			log.WithError(err).Warnf("Failed to stat %s, skipping", file.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(ownerPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read design file %s, skipping", file.Name())
			continue
		}
		var design core.Design
		if err := json.Unmarshal(data, &design); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal design file %s, skipping", file.Name())
			continue
		}
		// List views never carry the page payloads.
		design.Pages = nil
		design.OwnerID = ownerID
		design.UpdatedAt = info.ModTime()
		designs = append(designs, &design)
	}

	log.Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *fsStore) Get(ctx context.Context, ownerID, id string) (*core.Design, error) {
	filePath, err := s.designPath(ownerID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "design_id": id, "path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found")
			return nil, fmt.Errorf("design %s not found", id)
		}
		log.WithError(err).Error("Failed to read design file")
		return nil, err
	}

	var design core.Design
	if err := json.Unmarshal(data, &design); err != nil {
		log.WithError(err).Error("Failed to unmarshal design data")
		return nil, err
	}
	design.OwnerID = ownerID
	if info, err := os.Stat(filePath); err == nil {
		design.UpdatedAt = info.ModTime()
	}
	return &design, nil
}

func (s *fsStore) Save(ctx context.Context, design *core.Design) error {
	if design.OwnerID == "" || design.ID == "" {
		return fmt.Errorf("owner id and design id are required")
	}
	filePath, err := s.designPath(design.OwnerID, design.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": design.OwnerID, "design_id": design.ID, "path": filePath})

	if err := os.MkdirAll(s.ownerPath(design.OwnerID), 0755); err != nil {
		log.WithError(err).Error("Failed to create owner directory")
		return err
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		design.CreatedAt = time.Now()
	} else if err == nil {
		// The filesystem has no creation timestamp; keep the old mtime.
		design.CreatedAt = info.ModTime()
	}
	design.UpdatedAt = time.Now()

	data, err := json.Marshal(design)
	if err != nil {
		log.WithError(err).Error("Failed to marshal design for saving")
		return err
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write design file")
		return err
	}
	return nil
}

func (s *fsStore) Delete(ctx context.Context, ownerID, id string) error {
	filePath, err := s.designPath(ownerID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "design_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found for deletion, considered successful.")
			return nil
		}
		log.WithError(err).Error("Failed to delete design file")
		return err
	}
	log.Info("Design deleted successfully")
	return nil
}
