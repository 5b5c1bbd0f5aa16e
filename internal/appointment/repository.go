package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrClinicNotFound      = errors.New("clinic not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidRecord       = errors.New("invalid record")
	ErrDuplicateKey        = errors.New("duplicate key")
)

// Table is the in-memory form of one entity: ordered rows plus an index by key.
// Keyless tables (notifications, login logs) only support appends.
type Table[T any] struct {
	entity store.Entity
	fields []string
	rows   []T
	index  map[string]int
	key    func(T) string
	encode func(T) store.Record
}

func newTable[T any](entity store.Entity, fields []string, key func(T) string, encode func(T) store.Record) *Table[T] {
	return &Table[T]{
		entity: entity,
		fields: fields,
		index:  make(map[string]int),
		key:    key,
		encode: encode,
	}
}

func (t *Table[T]) Len() int {
	return len(t.rows)
}

// All returns a copy of the rows in file order.
func (t *Table[T]) All() []T {
	return append([]T(nil), t.rows...)
}

func (t *Table[T]) Get(key string) (T, bool) {
	var zero T
	if t.key == nil {
		return zero, false
	}
	i, ok := t.index[normalizeKey(key)]
	if !ok {
		return zero, false
	}
	return t.rows[i], true
}

// Put replaces the row with the same key or appends a new one.
func (t *Table[T]) Put(v T) {
	if t.key != nil {
		k := normalizeKey(t.key(v))
		if i, ok := t.index[k]; ok {
			t.rows[i] = v
			return
		}
		t.index[k] = len(t.rows)
	}
	t.rows = append(t.rows, v)
}

// Insert appends v and fails if its key is already present.
func (t *Table[T]) Insert(v T) error {
	if t.key != nil {
		if _, ok := t.index[normalizeKey(t.key(v))]; ok {
			return fmt.Errorf("%w: %s %q", ErrDuplicateKey, t.entity, t.key(v))
		}
	}
	t.Put(v)
	return nil
}

// Replace swaps the row stored under oldKey for v, which may carry a new key.
func (t *Table[T]) Replace(oldKey string, v T) error {
	i, ok := t.index[normalizeKey(oldKey)]
	if !ok {
		return fmt.Errorf("%s %q: %w", t.entity, oldKey, ErrInvalidRecord)
	}
	newKey := normalizeKey(t.key(v))
	if j, taken := t.index[newKey]; taken && j != i {
		return fmt.Errorf("%w: %s %q", ErrDuplicateKey, t.entity, t.key(v))
	}
	t.rows[i] = v
	t.reindex()
	return nil
}

func (t *Table[T]) Delete(key string) bool {
	i, ok := t.index[normalizeKey(key)]
	if !ok {
		return false
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.reindex()
	return true
}

// Update applies fn to every row and reports how many rows it changed.
func (t *Table[T]) Update(fn func(*T) bool) int {
	changed := 0
	for i := range t.rows {
		if fn(&t.rows[i]) {
			changed++
		}
	}
	if changed > 0 {
		t.reindex()
	}
	return changed
}

// NextID is one more than the largest numeric key, or "1" for an empty table.
func (t *Table[T]) NextID() string {
	max := 0
	for _, row := range t.rows {
		n, err := strconv.Atoi(strings.TrimSpace(t.key(row)))
		if err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

func (t *Table[T]) Snapshot() store.Snapshot {
	records := make([]store.Record, 0, len(t.rows))
	for _, row := range t.rows {
		records = append(records, t.encode(row))
	}
	return store.Snapshot{Entity: t.entity, Fields: t.fields, Records: records}
}

func (t *Table[T]) reindex() {
	if t.key == nil {
		return
	}
	t.index = make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		t.index[normalizeKey(t.key(row))] = i
	}
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Snapshotter is anything that can be committed through Repository.Commit.
type Snapshotter interface {
	Snapshot() store.Snapshot
}

// Repository loads typed tables from a store backend and commits them back.
// Tables are saved whole, so every load, change and commit cycle that writes
// must run through Mutate.
type Repository struct {
	backend store.Backend
	logger  *logging.Logger

	writeMu sync.Mutex
}

func NewRepository(backend store.Backend, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{backend: backend, logger: logger}
}

// Mutate runs fn while holding the repository write lock. Reads made inside
// fn see every earlier commit from this process and no other writer commits
// until fn returns. fn must not call Mutate again.
func (r *Repository) Mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// MutateResult is Mutate for write paths that produce a value.
func MutateResult[T any](ctx context.Context, r *Repository, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Mutate(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Commit saves the given tables in a single backend call.
func (r *Repository) Commit(ctx context.Context, tables ...Snapshotter) error {
	snaps := make([]store.Snapshot, 0, len(tables))
	for _, t := range tables {
		snaps = append(snaps, t.Snapshot())
	}
	if err := r.backend.Save(ctx, snaps...); err != nil {
		r.logger.Error("commit failed", "error", err, "tables", len(snaps))
		return err
	}
	return nil
}

func loadTable[T any](ctx context.Context, r *Repository, t *Table[T], decode func(store.Record) (T, error)) (*Table[T], error) {
	records, err := r.backend.Load(ctx, t.entity)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t.entity, err)
	}
	for _, rec := range records {
		v, err := decode(rec)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", t.entity, err)
		}
		t.Put(v)
	}
	return t, nil
}

func (r *Repository) Clinics(ctx context.Context) (*Table[Clinic], error) {
	t := newTable(store.Clinics, ClinicFields, func(c Clinic) string { return c.ID }, encodeClinic)
	return loadTable(ctx, r, t, decodeClinic)
}

func (r *Repository) Doctors(ctx context.Context) (*Table[Doctor], error) {
	t := newTable(store.Doctors, DoctorFields, func(d Doctor) string { return d.ID }, encodeDoctor)
	return loadTable(ctx, r, t, decodeDoctor)
}

func (r *Repository) Slots(ctx context.Context) (*Table[Slot], error) {
	t := newTable(store.Slots, SlotFields, func(s Slot) string { return s.ID }, encodeSlot)
	return loadTable(ctx, r, t, decodeSlot)
}

func (r *Repository) Appointments(ctx context.Context) (*Table[Appointment], error) {
	t := newTable(store.Appointments, AppointmentFields, func(a Appointment) string { return a.ID }, encodeAppointment)
	return loadTable(ctx, r, t, decodeAppointment)
}

func (r *Repository) Users(ctx context.Context) (*Table[User], error) {
	t := newTable(store.Users, UserFields, func(u User) string { return u.Email }, encodeUser)
	return loadTable(ctx, r, t, decodeUser)
}

func (r *Repository) Notifications(ctx context.Context) (*Table[Notification], error) {
	t := newTable[Notification](store.Notifications, NotificationFields, nil, encodeNotification)
	return loadTable(ctx, r, t, decodeNotification)
}

func (r *Repository) LoginEvents(ctx context.Context) (*Table[LoginEvent], error) {
	t := newTable[LoginEvent](store.LoginLogs, LoginEventFields, nil, encodeLoginEvent)
	return loadTable(ctx, r, t, decodeLoginEvent)
}

// Directory is the clinic and doctor lookup used when rendering slots and
// appointments. Missing ids resolve to "Unknown".
type Directory struct {
	Clinics *Table[Clinic]
	Doctors *Table[Doctor]
}

func (r *Repository) Directory(ctx context.Context) (*Directory, error) {
	clinics, err := r.Clinics(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := r.Doctors(ctx)
	if err != nil {
		return nil, err
	}
	return &Directory{Clinics: clinics, Doctors: doctors}, nil
}

const unknown = "Unknown"

func (d *Directory) Clinic(id string) Clinic {
	if c, ok := d.Clinics.Get(id); ok {
		return c
	}
	return Clinic{ID: id, Name: unknown, Location: unknown, Services: unknown, OperatingHours: unknown}
}

func (d *Directory) Doctor(id string) Doctor {
	if doc, ok := d.Doctors.Get(id); ok {
		return doc
	}
	return Doctor{ID: id, FullName: unknown, Specialty: unknown}
}
