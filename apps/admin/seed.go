package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/school"
)

// seed loads a demo period, class and a handful of users; safe to run
// more than once (existing emails are kept).
func (cli *commandLine) seed() error {
	tx, err := cli.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	periodID := uuid.New().String()
	if _, err = tx.Exec(
		`INSERT INTO periods (id, year, semester, period_number, is_active) VALUES ($1, $2, $3, $4, $5)`,
		periodID, time.Now().Year(), "1", 1, true,
	); err != nil {
		return errors.Wrap(err, "seeding period")
	}

	classID := uuid.New().String()
	if _, err = tx.Exec(
		`INSERT INTO classes (id, class_number, teacher_name, is_active, period_id) VALUES ($1, $2, $3, $4, $5)`,
		classID, 1, "Mr. Kamau", true, periodID,
	); err != nil {
		return errors.Wrap(err, "seeding class")
	}

	users := []struct {
		name, email, role string
		classID           interface{}
	}{
		{"Admin", "admin@kazi.local", school.RoleAdmin, nil},
		{"Coordinator", "coordinator@kazi.local", school.RoleCoordinator, nil},
		{"Amina Student", "amina@kazi.local", school.RoleStudent, classID},
		{"Baraka Student", "baraka@kazi.local", school.RoleStudent, classID},
		{"Chiku Student", "chiku@kazi.local", school.RoleStudent, classID},
	}
	for _, usr := range users {
		if _, err = tx.Exec(
			`INSERT INTO users (id, name, email, role, class_id) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (email) DO NOTHING`,
			uuid.New().String(), usr.name, usr.email, usr.role, usr.classID,
		); err != nil {
			return errors.Wrapf(err, "seeding user %s", usr.email)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	fmt.Println("demo data loaded: 1 period, 1 class, 5 users")
	return nil
}
