package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/outboundlabs/relay/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createDraftTable(db)
	if err != nil {
		return nil, err
	}
	err = createQueuedContactTable(db)
	if err != nil {
		return nil, err
	}
	err = createQuotaCounterTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createDraftTable creates a PostgreSQL table for the Draft struct
func createDraftTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			id SERIAL PRIMARY KEY,
			draft_id TEXT NOT NULL UNIQUE,
			recipient TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			body_html TEXT,
			status TEXT NOT NULL,
			rejected_reason TEXT,
			approved_by TEXT,
			approved_at TIMESTAMP,
			external_message_id TEXT,
			external_thread_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating drafts table: %v", err)
	}
	return err
}

// createQueuedContactTable creates a PostgreSQL table for the QueuedContact struct.
// The partial unique index enforces case-insensitive email uniqueness within the
// live backlog only; archived rows do not block re-queueing a contact.
func createQueuedContactTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS queued_contacts (
			id SERIAL PRIMARY KEY,
			contact_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			name TEXT,
			company TEXT,
			job_title TEXT,
			source TEXT,
			static_priority_score INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			queued_at TIMESTAMP NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMP,
			error_message TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_queued_contacts_live_email
			ON queued_contacts (LOWER(email))
			WHERE status IN ('QUEUED', 'PROCESSING')
	`)
	if err != nil {
		log.Printf("Error creating queued_contacts table: %v", err)
	}
	return err
}

// createQuotaCounterTable creates a PostgreSQL table for the quota counters
func createQuotaCounterTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quota_counters (
			dimension TEXT NOT NULL,
			bucket_key TEXT NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (dimension, bucket_key)
		)
	`)
	if err != nil {
		log.Printf("Error creating quota_counters table: %v", err)
	}
	return err
}
