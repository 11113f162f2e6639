package db

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

var testDBCounter atomic.Uint64

// openMemoryDB opens an isolated in-memory SQLite database and applies ddl
func openMemoryDB(t *testing.T, ddl string) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(ddl)
	require.NoError(t, err)
	return db
}

const blogSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	name TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title VARCHAR(200) NOT NULL,
	published tinyint(1) DEFAULT 0
);
CREATE INDEX idx_posts_title ON posts(title);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY,
	label TEXT
);
CREATE TABLE post_tag (
	post_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY (post_id, tag_id),
	FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE,
	FOREIGN KEY (tag_id) REFERENCES tags
);
CREATE TRIGGER posts_touch AFTER UPDATE ON posts
BEGIN
	UPDATE users SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.user_id;
END;
`

func findForeignKey(fks []RawForeignKey, column string) (RawForeignKey, bool) {
	for _, fk := range fks {
		if fk.Column == column {
			return fk, true
		}
	}
	return RawForeignKey{}, false
}
