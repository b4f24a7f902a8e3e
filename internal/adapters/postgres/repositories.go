package postgres

import (
	"gorm.io/gorm"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

// Repositories bundles every Postgres-backed port implementation over one
// shared connection pool.
type Repositories struct {
	Users         ports.UserRepository
	Affiliations  ports.AffiliationRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	ResetTokens   ports.ResetTokenRepository
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         &userRepository{db: db},
		Affiliations:  &affiliationRepository{db: db},
		Sessions:      &sessionRepository{db: db},
		LoginAttempts: &loginAttemptRepository{db: db},
		ResetTokens:   &resetTokenRepository{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}
