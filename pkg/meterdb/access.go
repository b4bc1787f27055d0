package meterdb

import (
	"database/sql"
	"errors"
)

// UpsertDatapoint replaces the stored value for dp.Key.
func (s *Store) UpsertDatapoint(dp *MeterDbDatapoint) error {
	_, err := s.db.Exec(
		"INSERT INTO latest_datapoints (key, value, horodate, received_at) "+
			"VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET "+
			"value = excluded.value, horodate = excluded.horodate, received_at = excluded.received_at",
		dp.Key,
		dp.Value,
		dp.Horodate,
		dp.ReceivedAt,
	)
	return err
}

// GetDatapoint returns nil without error when key was never stored.
func (s *Store) GetDatapoint(key string) (*MeterDbDatapoint, error) {
	row := s.db.QueryRow(
		"SELECT key, value, horodate, received_at FROM latest_datapoints WHERE key = ?",
		key,
	)
	dp, err := scanDatapoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return dp, err
}

// GetLatestDatapoints returns every stored datapoint ordered by key.
func (s *Store) GetLatestDatapoints() ([]*MeterDbDatapoint, error) {
	rows, err := s.db.Query(
		"SELECT key, value, horodate, received_at FROM latest_datapoints ORDER BY key",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MeterDbDatapoint
	for rows.Next() {
		dp, err := scanDatapoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

func scanDatapoint(row interface{ Scan(...any) error }) (*MeterDbDatapoint, error) {
	var dp MeterDbDatapoint
	var horodate sql.NullInt64
	if err := row.Scan(&dp.Key, &dp.Value, &horodate, &dp.ReceivedAt); err != nil {
		return nil, err
	}
	if horodate.Valid {
		dp.Horodate = &horodate.Int64
	}
	return &dp, nil
}
