package database

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    name TEXT PRIMARY KEY,
    ext TEXT NOT NULL,
    media_type TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    uploaded DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_media_type ON assets(media_type);
`
