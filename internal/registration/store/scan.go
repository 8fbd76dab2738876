package store

import (
	"database/sql"
	"fmt"

	"prelaunch/internal/registration/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(
		&reg.ID,
		&reg.Name,
		&reg.Email,
		&reg.Phone,
		&reg.WantsNotifications,
		&reg.AcceptsPrivacyPolicy,
		&reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func collect(rows *sql.Rows) ([]*models.Registration, error) {
	out := []*models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}
