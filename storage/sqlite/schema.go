package sqlite

// Schema is applied on every open; all statements are idempotent. The
// items_fts virtual table is an external-content FTS5 index over
// title/content/tags, kept in sync by triggers so writers never touch
// it directly.
const schema = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	item_type  TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '[]',
	embedding  BLOB,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
	title, content, tags,
	content='items',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS items_fts_insert AFTER INSERT ON items BEGIN
	INSERT INTO items_fts(rowid, title, content, tags)
	VALUES (new.rowid, new.title, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS items_fts_delete AFTER DELETE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, title, content, tags)
	VALUES ('delete', old.rowid, old.title, old.content, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS items_fts_update AFTER UPDATE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, title, content, tags)
	VALUES ('delete', old.rowid, old.title, old.content, old.tags);
	INSERT INTO items_fts(rowid, title, content, tags)
	VALUES (new.rowid, new.title, new.content, new.tags);
END;

CREATE TABLE IF NOT EXISTS relations (
	from_id       TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	to_id         TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	relation_type TEXT NOT NULL,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	UNIQUE (from_id, to_id, relation_type)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id, relation_type);
`

const upsertItem = `
INSERT INTO items (id, item_type, title, content, tags, embedding, payload, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	item_type  = excluded.item_type,
	title      = excluded.title,
	content    = excluded.content,
	tags       = excluded.tags,
	embedding  = excluded.embedding,
	payload    = excluded.payload,
	updated_at = excluded.updated_at
`

const selectItem = `
SELECT item_type, payload, created_at, updated_at FROM items WHERE id = ?
`

const selectEmbedded = `
SELECT item_type, payload, created_at, updated_at, embedding
FROM items WHERE embedding IS NOT NULL
`

const insertRelation = `
INSERT OR IGNORE INTO relations (from_id, to_id, relation_type) VALUES (?, ?, ?)
`

const selectRelated = `
SELECT i.item_type, i.payload, i.created_at, i.updated_at
FROM items i JOIN relations r ON i.id = r.to_id
WHERE r.from_id = ?
`

const selectFullText = `
SELECT i.item_type, i.payload, i.created_at, i.updated_at
FROM items_fts f JOIN items i ON i.rowid = f.rowid
WHERE items_fts MATCH ?
ORDER BY rank
LIMIT ?
`
