package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-academic-portal/internal/model"
)

type demoAccount struct {
	email    string
	password string
	names    string
	surnames string
	roles    []model.WireRole
}

var (
	roleAdmin   = model.WireRole{ID: 1, Nombre: "administrador"}
	roleTeacher = model.WireRole{ID: 2, Nombre: "docente"}
	roleStudent = model.WireRole{ID: 3, Nombre: "estudiante"}
)

// Demo users seeded when no users file exists.
var demoAccounts = []demoAccount{
	{"admin@portal.edu", "admin123", "Admin", "Portal", []model.WireRole{roleAdmin}},
	{"docente@portal.edu", "docente123", "Carlos", "Méndez", []model.WireRole{roleTeacher}},
	{"estudiante@portal.edu", "estudiante123", "Lucía", "Torres", []model.WireRole{roleStudent}},
	{"ana@portal.edu", "ana123", "Ana", "Ruiz", []model.WireRole{roleStudent, roleTeacher}},
}

// loadAccounts reads the users file, seeding it with the demo users when it
// is missing or empty. Without a users file the demo users live in memory.
func (s *AuthService) loadAccounts() error {
	if s.usersFile == "" {
		accounts, err := s.seedAccounts()
		if err != nil {
			return err
		}
		s.indexAccounts(accounts)
		return nil
	}

	data, err := os.ReadFile(s.usersFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read users file: %w", err)
	}

	var accounts []model.Account
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &accounts); err != nil {
			return fmt.Errorf("parse users file: %w", err)
		}
	}

	if len(accounts) == 0 {
		accounts, err = s.seedAccounts()
		if err != nil {
			return err
		}
		if err := writeAccounts(s.usersFile, accounts); err != nil {
			return err
		}
	}

	s.indexAccounts(accounts)
	return nil
}

func (s *AuthService) seedAccounts() ([]model.Account, error) {
	now := s.now().UTC()
	accounts := make([]model.Account, 0, len(demoAccounts))
	for _, demo := range demoAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(demo.password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		accounts = append(accounts, model.Account{
			ID:           uuid.NewString(),
			Email:        demo.email,
			PasswordHash: string(hash),
			Names:        demo.names,
			Surnames:     demo.surnames,
			Roles:        demo.roles,
			CreatedAt:    now,
		})
	}
	return accounts, nil
}

func (s *AuthService) indexAccounts(accounts []model.Account) {
	byEmail := make(map[string]model.Account, len(accounts))
	byID := make(map[string]model.Account, len(accounts))
	for _, account := range accounts {
		byEmail[normalizeEmail(account.Email)] = account
		byID[account.ID] = account
	}

	s.mu.Lock()
	s.usersByEmail = byEmail
	s.usersByID = byID
	s.mu.Unlock()
}

func writeAccounts(path string, accounts []model.Account) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create users dir: %w", err)
	}

	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// DemoCredentials lists the seeded logins, for the CLI banner.
func DemoCredentials() map[string]string {
	out := make(map[string]string, len(demoAccounts))
	for _, demo := range demoAccounts {
		out[demo.email] = demo.password
	}
	return out
}

// Accounts returns a snapshot of the loaded accounts.
func (s *AuthService) Accounts() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Account, 0, len(s.usersByID))
	for _, account := range s.usersByID {
		out = append(out, account)
	}
	return out
}
