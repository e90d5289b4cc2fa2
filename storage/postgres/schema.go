package postgres

// The schema is applied on every open; all statements are idempotent.
// The embedding column dimension is fixed per database, so schemaSQL is
// a template instantiated with the configured dimension.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS items (
	id         UUID PRIMARY KEY,
	item_type  TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	embedding  vector(%d),
	payload    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_tags ON items USING GIN (tags);

CREATE INDEX IF NOT EXISTS idx_items_embedding ON items
	USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS relations (
	from_id       UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	to_id         UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	relation_type TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (from_id, to_id, relation_type)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id, relation_type);
`

const upsertItem = `
INSERT INTO items (id, item_type, title, content, tags, embedding, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	item_type  = EXCLUDED.item_type,
	title      = EXCLUDED.title,
	content    = EXCLUDED.content,
	tags       = EXCLUDED.tags,
	embedding  = EXCLUDED.embedding,
	payload    = EXCLUDED.payload,
	updated_at = EXCLUDED.updated_at
`

const selectItem = `
SELECT item_type, payload, created_at, updated_at FROM items WHERE id = $1
`

const insertRelation = `
INSERT INTO relations (from_id, to_id, relation_type)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`

const selectRelated = `
SELECT i.item_type, i.payload, i.created_at, i.updated_at
FROM items i JOIN relations r ON i.id = r.to_id
WHERE r.from_id = $1 AND ($2 = '' OR r.relation_type = $2)
ORDER BY r.created_at, i.id
`

const selectNearest = `
SELECT item_type, payload, created_at, updated_at, embedding <=> $1 AS distance
FROM items
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1, id
LIMIT $2
`
