package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/chats"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/messages"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/otps"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/resets"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DBTX, so the same
// code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	OTPs(db dbx.DBTX) otps.Repository
	Resets(db dbx.DBTX) resets.Repository
	Chats(db dbx.DBTX) chats.Repository
	Messages(db dbx.DBTX) messages.Repository
}
