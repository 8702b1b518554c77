package model

import (
	"database/sql"
	"time"
)

// Wallet is an owner address a user has linked. The set of a user's wallet
// addresses drives the ownership rule when aggregating transactions.
type Wallet struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWallet inserts a new wallet for a user.
func (w *Wallet) CreateWallet(db *sql.DB) error {
	query := `
	INSERT INTO wallets (user_id, address, label, created_at)
	VALUES (?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	w.CreatedAt = time.Now()
	res, err := stmt.Exec(w.UserID, w.Address, w.Label, w.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = id
	return nil
}

// GetWalletsByUser returns all wallets linked by a user.
func GetWalletsByUser(db *sql.DB, userID int64) ([]Wallet, error) {
	rows, err := db.Query(`
	SELECT id, user_id, address, label, created_at
	FROM wallets
	WHERE user_id = ?
	ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		var label sql.NullString
		if err := rows.Scan(&w.ID, &w.UserID, &w.Address, &label, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Label = label.String
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// GetWalletAddressSet returns the user's addresses as a lookup set.
func GetWalletAddressSet(db *sql.DB, userID int64) (map[string]bool, error) {
	wallets, err := GetWalletsByUser(db, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		set[w.Address] = true
	}
	return set, nil
}
