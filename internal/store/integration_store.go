package store

import (
	"database/sql"
	"fmt"
	"time"
)

// =============================================================================
// Service accounts (OAuth / API-key integrations)
// =============================================================================

const accountColumns = `id, user_id, service, account_label, api_key,
	access_token, refresh_token, is_default, status, created_at, updated_at`

// SaveServiceAccount creates or updates a service account in one transaction.
// The first account for a (user, service) becomes the default; promoting an
// account to default demotes the previous default in the same transaction, so
// there are never two defaults.
func (s *SQLiteStore) SaveServiceAccount(acct *ServiceAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM service_accounts
		WHERE user_id = ? AND service = ? AND id != ?
	`, acct.UserID, acct.Service, acct.ID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		acct.IsDefault = true
	}

	if acct.IsDefault {
		if _, err := tx.Exec(`
			UPDATE service_accounts SET is_default = 0, updated_at = ?
			WHERE user_id = ? AND service = ? AND id != ?
		`, time.Now().UnixMilli(), acct.UserID, acct.Service, acct.ID); err != nil {
			return err
		}
	}

	if acct.Status == "" {
		acct.Status = "active"
	}
	_, err = tx.Exec(`
		INSERT INTO service_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_label = excluded.account_label,
			api_key = excluded.api_key,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			is_default = excluded.is_default,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, acct.ID, acct.UserID, acct.Service, acct.AccountLabel, acct.APIKey,
		acct.AccessToken, acct.RefreshToken, boolToInt(acct.IsDefault),
		acct.Status, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteServiceAccount removes an account and, if it was the default,
// promotes the oldest remaining account for the same service inside the same
// transaction, so the service is never left without a default while accounts
// remain.
func (s *SQLiteStore) DeleteServiceAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID, service string
	var wasDefault int
	err = tx.QueryRow(`
		SELECT user_id, service, is_default FROM service_accounts WHERE id = ?
	`, id).Scan(&userID, &service, &wasDefault)
	if err == sql.ErrNoRows {
		return fmt.Errorf("service account not found: %s", id)
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM service_accounts WHERE id = ?", id); err != nil {
		return err
	}

	if wasDefault != 0 {
		_, err = tx.Exec(`
			UPDATE service_accounts SET is_default = 1, updated_at = ?
			WHERE id = (
				SELECT id FROM service_accounts
				WHERE user_id = ? AND service = ?
				ORDER BY created_at ASC LIMIT 1
			)
		`, time.Now().UnixMilli(), userID, service)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListServiceAccounts returns a user's accounts, optionally filtered by
// service, defaults first.
func (s *SQLiteStore) ListServiceAccounts(userID, service string) ([]*ServiceAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if service != "" {
		rows, err = s.db.Query(`
			SELECT `+accountColumns+` FROM service_accounts
			WHERE user_id = ? AND service = ?
			ORDER BY is_default DESC, created_at ASC
		`, userID, service)
	} else {
		rows, err = s.db.Query(`
			SELECT `+accountColumns+` FROM service_accounts
			WHERE user_id = ?
			ORDER BY service ASC, is_default DESC, created_at ASC
		`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ServiceAccount
	for rows.Next() {
		var a ServiceAccount
		var isDefault int
		if err := rows.Scan(&a.ID, &a.UserID, &a.Service, &a.AccountLabel,
			&a.APIKey, &a.AccessToken, &a.RefreshToken, &isDefault,
			&a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.IsDefault = isDefault != 0
		out = append(out, &a)
	}
	return out, rows.Err()
}

// GetCredentials returns the default account's secrets for a service.
// Returns nil when the user has no account for the service.
func (s *SQLiteStore) GetCredentials(userID, service string) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Credentials
	err := s.db.QueryRow(`
		SELECT api_key, access_token, refresh_token FROM service_accounts
		WHERE user_id = ? AND service = ? AND is_default = 1
		LIMIT 1
	`, userID, service).Scan(&c.APIKey, &c.AccessToken, &c.RefreshToken)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// Notifications
// =============================================================================

// AddNotification inserts a notification.
func (s *SQLiteStore) AddNotification(n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO notifications (id, user_id, kind, title, body, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.ReadAt, n.CreatedAt)
	return err
}

// ListUnreadNotifications returns a user's unread notifications, newest first.
func (s *SQLiteStore) ListUnreadNotifications(userID string) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, user_id, kind, title, body, read_at, created_at
		FROM notifications
		WHERE user_id = ? AND read_at IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var readAt sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body,
			&readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Int64
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationRead stamps a notification as read.
func (s *SQLiteStore) MarkNotificationRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL
	`, time.Now().UnixMilli(), id)
	return err
}
