package cache

const schema = `
CREATE TABLE IF NOT EXISTS proofs (
  key BLOB NOT NULL PRIMARY KEY,
  version TEXT NOT NULL,
  bits BLOB NOT NULL,
  created_at INTEGER NOT NULL
);
`
