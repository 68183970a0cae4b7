package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dan9191/strata-service/internal/integrations/bankstatement"
	"github.com/Dan9191/strata-service/internal/middleware"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/repository"
)

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runMigrate passes its arguments to goose: up, down, status, version, redo, reset.
func runMigrate(args []string) error {
	command := "up"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	state, err := newAdminState()
	if err != nil {
		return err
	}
	defer state.Close()
	return repository.Migrate(state.ctx, state.db, state.log, command, args...)
}

func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	var asOfRaw string
	fs.StringVar(&asOfRaw, "as-of", "", "sweep date (YYYY-MM-DD), defaults to today")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var asOf models.Date
	if asOfRaw != "" {
		d, err := models.ParseDate(asOfRaw)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
		asOf = d
	}

	state, err := newAdminState()
	if err != nil {
		return err
	}
	defer state.Close()
	report, err := state.service().SweepAll(state.ctx, asOf)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runImportStatement(args []string) error {
	fs := flag.NewFlagSet("import-statement", flag.ContinueOnError)
	var file string
	fs.StringVar(&file, "file", "", "camt.053 statement file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if file == "" {
		return errors.New("import-statement requires --file")
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	stmt, err := bankstatement.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	state, err := newAdminState()
	if err != nil {
		return err
	}
	defer state.Close()
	report, err := state.service().ImportStatement(state.ctx, stmt)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runPutLot(args []string) error {
	fs := flag.NewFlagSet("put-lot", flag.ContinueOnError)
	var lot, building, unit string
	fs.StringVar(&lot, "lot", "", "lot id")
	fs.StringVar(&building, "building", "", "building id")
	fs.StringVar(&unit, "unit", "", "unit number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if lot == "" || building == "" {
		return errors.New("put-lot requires --lot and --building")
	}

	state, err := newAdminState()
	if err != nil {
		return err
	}
	defer state.Close()
	return repository.NewDirectory(state.db).PutLot(state.ctx, lot, building, unit)
}

func runPutMember(args []string) error {
	fs := flag.NewFlagSet("put-member", flag.ContinueOnError)
	var building, user, role string
	fs.StringVar(&building, "building", "", "building id")
	fs.StringVar(&user, "user", "", "user id")
	fs.StringVar(&role, "role", string(models.RoleOwner), "resident, owner, manager or committee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if building == "" || user == "" {
		return errors.New("put-member requires --building and --user")
	}
	if err := checkRole(models.Role(role)); err != nil {
		return err
	}

	state, err := newAdminState()
	if err != nil {
		return err
	}
	defer state.Close()
	return repository.NewDirectory(state.db).PutMember(state.ctx, building, user, models.Role(role))
}

// runToken prints a bearer token for local testing and service accounts.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	var sub, role string
	var ttl time.Duration
	fs.StringVar(&sub, "sub", "", "user id")
	fs.StringVar(&role, "role", string(models.RoleOwner), "token role")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sub == "" {
		return errors.New("token requires --sub")
	}
	if err := checkRole(models.Role(role)); err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	// Only the secret is needed, so skip the full config validation.
	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	token, err := middleware.IssueToken(secret, models.Actor{ID: sub, Role: models.Role(role)}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func checkRole(r models.Role) error {
	switch r {
	case models.RoleResident, models.RoleOwner, models.RoleManager, models.RoleCommittee, models.RoleAdmin:
		return nil
	}
	return fmt.Errorf("unknown role %q", r)
}
