// Package store persists whole-entity snapshots. Every entity is a table of
// string records that is loaded in full and rewritten in full on save.
package store

import (
	"context"
	"errors"
)

type Entity string

const (
	Users         Entity = "users"
	Clinics       Entity = "clinics"
	Doctors       Entity = "doctors"
	Slots         Entity = "slots"
	Appointments  Entity = "appointments"
	Notifications Entity = "notifications"
	LoginLogs     Entity = "login_logs"
)

// Entities lists every entity the tool persists.
var Entities = []Entity{Users, Clinics, Doctors, Slots, Appointments, Notifications, LoginLogs}

var ErrEmptySave = errors.New("save called without snapshots")

// Record maps a field name to its raw string value.
type Record map[string]string

// Snapshot is the full content of one entity as it should be written.
type Snapshot struct {
	Entity  Entity
	Fields  []string
	Records []Record
}

// Backend loads and saves entity snapshots.
//
// Save commits every snapshot passed in one call together: either all of them
// are visible afterwards or none are. A missing entity loads as empty.
type Backend interface {
	Load(ctx context.Context, entity Entity) ([]Record, error)
	Save(ctx context.Context, snapshots ...Snapshot) error
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
