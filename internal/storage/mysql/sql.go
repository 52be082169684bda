package mysql

const upsertSessionSQL = `
INSERT INTO review_sessions
  (id, payload, review_count, expires_at)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  payload      = VALUES(payload),
  review_count = VALUES(review_count),
  expires_at   = VALUES(expires_at),
  updated_at   = CURRENT_TIMESTAMP
`

// Expired rows are treated as absent; DeleteExpired removes them.
const getSessionSQL = `
SELECT payload
FROM review_sessions
WHERE id = ?
  AND (expires_at IS NULL OR expires_at > ?)
`

const deleteExpiredSQL = `
DELETE FROM review_sessions
WHERE expires_at IS NOT NULL AND expires_at <= ?
`
