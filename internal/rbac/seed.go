package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/machinemu/machinemu/internal/platform/db"
)

// Default accounts created on first initialization.
const (
	seedAdminName     = "admin"
	seedAdminPassword = "admin123"
	seedUserName      = "user"
	seedUserPassword  = "user123"
)

// Seed reconciles the database with the built-in policy. It runs on every
// startup inside one transaction:
//   - missing vocabulary permissions are inserted, existing rows are kept;
//   - Admin and User roles are ensured;
//   - role-to-permission assignments for the built-in roles are diffed
//     against SeedPolicy, inserting missing links and deleting extras, so
//     a role never passes through an empty permission set;
//   - the default admin/user accounts and their role links are created only
//     while the users table is empty;
//   - two cars and two motorcycles are created while their tables are empty.
func Seed(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		permIDs, err := ensureVocabulary(ctx, tx)
		if err != nil {
			return err
		}
		roleIDs, err := ensureRoles(ctx, tx)
		if err != nil {
			return err
		}
		if err := reconcileAssignments(ctx, tx, roleIDs, permIDs); err != nil {
			return err
		}
		if err := ensureAccounts(ctx, tx, roleIDs); err != nil {
			return err
		}
		return ensureVehicles(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("rbac: seed: %w", err)
	}
	if logger != nil {
		logger.Info("seed policy reconciled",
			slog.Int("permissions", len(Vocabulary())),
			slog.String("roles", RoleAdmin+","+RoleUser))
	}
	return nil
}

func ensureVocabulary(ctx context.Context, tx pgx.Tx) (map[Permission]int64, error) {
	ids := make(map[Permission]int64, len(Vocabulary()))
	for _, perm := range Vocabulary() {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO permissions (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, perm.String()).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids[perm] = id
	}
	return ids, nil
}

func ensureRoles(ctx context.Context, tx pgx.Tx) (map[string]int64, error) {
	ids := make(map[string]int64, 2)
	for _, name := range []string{RoleAdmin, RoleUser} {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}

func reconcileAssignments(ctx context.Context, tx pgx.Tx, roleIDs map[string]int64, permIDs map[Permission]int64) error {
	for roleName, wanted := range SeedPolicy() {
		roleID := roleIDs[roleName]

		rows, err := tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
		if err != nil {
			return err
		}
		existing := make(map[int64]struct{})
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			existing[id] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		keep := make(map[int64]struct{}, len(wanted))
		for _, perm := range wanted {
			permID := permIDs[perm]
			keep[permID] = struct{}{}
			if _, ok := existing[permID]; !ok {
				if _, err := tx.Exec(ctx,
					`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`,
					roleID, permID); err != nil {
					return err
				}
			}
		}
		for permID := range existing {
			if _, ok := keep[permID]; !ok {
				if _, err := tx.Exec(ctx,
					`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
					roleID, permID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func ensureAccounts(ctx context.Context, tx pgx.Tx, roleIDs map[string]int64) error {
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	accounts := []struct {
		name     string
		password string
		role     string
	}{
		{seedAdminName, seedAdminPassword, RoleAdmin},
		{seedUserName, seedUserPassword, RoleUser},
	}
	for _, acc := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		var userID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (user_name, password_hash) VALUES ($1, $2) RETURNING id`,
			acc.name, string(hash)).Scan(&userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
			userID, roleIDs[acc.role]); err != nil {
			return err
		}
	}
	return nil
}

func ensureVehicles(ctx context.Context, tx pgx.Tx) error {
	var carCount int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM cars`).Scan(&carCount); err != nil {
		return err
	}
	if carCount == 0 {
		for _, name := range []string{"Car A", "Car B"} {
			if _, err := tx.Exec(ctx,
				`INSERT INTO cars (name, status, gas, consumption_per_km) VALUES ($1, 'Stopped', 50, 0.1)`,
				name); err != nil {
				return err
			}
		}
	}

	var motoCount int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM motorcycles`).Scan(&motoCount); err != nil {
		return err
	}
	if motoCount == 0 {
		for _, name := range []string{"Motorcycle A", "Motorcycle B"} {
			if _, err := tx.Exec(ctx,
				`INSERT INTO motorcycles (name, status, gas, consumption_per_km) VALUES ($1, 'Stopped', 20, 0.05)`,
				name); err != nil {
				return err
			}
		}
	}
	return nil
}
