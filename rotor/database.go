package rotor

import (
	"context"
)

// Database performs operations on a given database.
type Database struct {
	client *Client
	name   string
}

// Client returns the Client the database was created from.
func (db *Database) Client() *Client {
	return db.client
}

// Name returns the name of the database.
func (db *Database) Name() string {
	return db.name
}

// Collection gets a handle for a given collection in the database.
func (db *Database) Collection(name string) *Collection {
	return &Collection{client: db.client, db: db, name: name}
}

// RunCommand runs a command against the database.
func (db *Database) RunCommand(ctx context.Context, command interface{}, result interface{}) error {
	return db.client.RunCommand(ctx, db.name, command, result)
}
