package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"flowsmartly-studio/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmt := `
	CREATE TABLE IF NOT EXISTS designs (
		id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		name TEXT,
		width INTEGER,
		height INTEGER,
		pages BLOB,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (owner_id, id)
	);`
	if _, err = db.Exec(stmt); err != nil {
		log.Fatalf("failed to create designs table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, width, height, created_at, updated_at FROM designs WHERE owner_id = ?", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var designs []*core.Design
	for rows.Next() {
		var d core.Design
		d.OwnerID = ownerID
		if err := rows.Scan(&d.ID, &d.Name, &d.Width, &d.Height, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, &d)
	}
	return designs, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, ownerID, id string) (*core.Design, error) {
	var d core.Design
	d.OwnerID = ownerID
	d.ID = id
	var pages []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT name, width, height, pages, created_at, updated_at FROM designs WHERE owner_id = ? AND id = ?",
		ownerID, id).Scan(&d.Name, &d.Width, &d.Height, &pages, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("design not found")
		}
		return nil, err
	}
	if len(pages) > 0 {
		if err := json.Unmarshal(pages, &d.Pages); err != nil {
			logrus.WithError(err).WithField("design_id", id).Error("Failed to decode stored pages")
			return nil, err
		}
	}
	return &d, nil
}

func (s *sqliteStore) Save(ctx context.Context, design *core.Design) error {
	pages, err := json.Marshal(design.Pages)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM designs WHERE owner_id = ? AND id = ?", design.OwnerID, design.ID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	now := time.Now()
	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE designs SET name = ?, width = ?, height = ?, pages = ?, updated_at = ? WHERE owner_id = ? AND id = ?",
			design.Name, design.Width, design.Height, pages, now, design.OwnerID, design.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO designs (id, owner_id, name, width, height, pages, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			design.ID, design.OwnerID, design.Name, design.Width, design.Height, pages, now, now)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Delete(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM designs WHERE owner_id = ? AND id = ?", ownerID, id)
	return err
}
