package conn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/query"
	"github.com/tobsdb/tdbadmin/pkg"
	sorted "github.com/tobshub/go-sortedmap"
)

var (
	ErrConnectionNotFound = errors.New("Database not found")
	ErrDatabaseExists     = errors.New("Database already exists")
)

// extensions listed as databases when scanning a directory
var db_extensions = []string{".db", ".sqlite", ".sqlite3"}

// Connection is a known database file, opened on first use.
type Connection struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"-"`

	db *builder.Database
}

func connectionComparisonFunc(a, b *Connection) bool {
	if a.Name == b.Name {
		return a.Id < b.Id
	}
	return a.Name < b.Name
}

// Manager hands out stable ids for database files in Dir and keeps the
// opened ones.
type Manager struct {
	locker sync.RWMutex
	Dir    string

	conns *sorted.SortedMap[string, *Connection]
	// full path -> id
	paths pkg.Map[string, string]
}

func NewManager(dir string) *Manager {
	return &Manager{
		Dir:   dir,
		conns: sorted.New[string, *Connection](0, connectionComparisonFunc),
		paths: pkg.Map[string, string]{},
	}
}

func (m *Manager) GetLocker() *sync.RWMutex { return &m.locker }

func isDatabaseFile(name string) bool {
	return pkg.Some(db_extensions, func(ext string) bool { return strings.EqualFold(filepath.Ext(name), ext) })
}

// Scan registers every database file in Dir and forgets connections whose
// file is gone.
func (m *Manager) Scan() error {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return err
	}

	found := pkg.Map[string, bool]{}
	for _, e := range entries {
		if e.IsDir() || !isDatabaseFile(e.Name()) {
			continue
		}
		full_path := filepath.Join(m.Dir, e.Name())
		found.Set(full_path, true)
		m.CreateConnection(full_path)
	}

	for _, c := range m.List() {
		if !found.Has(c.Path) {
			pkg.DebugLog("database file", c.Path, "is gone")
			m.DeleteConnection(c.Id)
		}
	}
	return nil
}

// CreateConnection returns the id of full_path, registering it first if needed.
func (m *Manager) CreateConnection(full_path string) string {
	m.locker.Lock()
	defer m.locker.Unlock()

	if m.paths.Has(full_path) {
		return m.paths.Get(full_path)
	}

	id := uuid.New().String()
	m.paths.Set(full_path, id)
	m.conns.Insert(id, &Connection{Id: id, Name: filepath.Base(full_path), Path: full_path})
	return id
}

func (m *Manager) GetById(id string) (*Connection, bool) {
	m.locker.RLock()
	defer m.locker.RUnlock()
	return m.conns.Get(id)
}

// Connect returns the opened database for id, opening it on first use.
func (m *Manager) Connect(id string) (*builder.Database, error) {
	m.locker.Lock()
	defer m.locker.Unlock()

	c, ok := m.conns.Get(id)
	if !ok {
		return nil, ErrConnectionNotFound
	}
	if c.db != nil {
		return c.db, nil
	}

	db, err := query.Open(c.Path)
	if err != nil {
		return nil, err
	}
	pkg.InfoLog("connected to", c.Path)
	c.db = db
	return db, nil
}

// DeleteConnection closes and forgets id. The file is left alone.
func (m *Manager) DeleteConnection(id string) {
	m.locker.Lock()
	defer m.locker.Unlock()
	m.deleteConnection(id)
}

func (m *Manager) deleteConnection(id string) *Connection {
	c, ok := m.conns.Get(id)
	if !ok {
		return nil
	}
	closeConnection(c)
	m.conns.Delete(id)
	m.paths.Delete(c.Path)
	return c
}

func closeConnection(c *Connection) {
	if c.db == nil {
		return
	}
	err := pkg.LockWrapErr(c.db, c.db.Close)
	if err != nil {
		pkg.ErrorLog("closing", c.Path, err)
	}
	c.db = nil
}

// List returns the known connections sorted by name.
func (m *Manager) List() []*Connection {
	m.locker.RLock()
	defer m.locker.RUnlock()

	list := []*Connection{}
	iter_ch, err := m.conns.IterCh()
	if err != nil {
		// empty map
		return list
	}
	for rec := range iter_ch.Records() {
		list = append(list, rec.Val)
	}
	return list
}

// CreateDatabase creates an empty database file in Dir. name gets a .db
// extension unless it already has a database extension.
func (m *Manager) CreateDatabase(name string) (*Connection, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, builder.NewFieldError("name", fmt.Sprintf("Invalid database name: %q", name))
	}
	if !isDatabaseFile(name) {
		name += ".db"
	}

	full_path := filepath.Join(m.Dir, name)
	if _, err := os.Stat(full_path); err == nil {
		return nil, builder.NewFieldError("name", fmt.Sprintf("%s: %s", ErrDatabaseExists.Error(), name))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// opening creates the file
	db, err := query.Open(full_path)
	if err != nil {
		return nil, err
	}

	id := m.CreateConnection(full_path)
	m.locker.Lock()
	defer m.locker.Unlock()
	c, _ := m.conns.Get(id)
	c.db = db
	pkg.InfoLog("created database", full_path)
	return c, nil
}

// DeleteDatabase closes id and removes its file.
func (m *Manager) DeleteDatabase(id string) error {
	m.locker.Lock()
	defer m.locker.Unlock()

	c := m.deleteConnection(id)
	if c == nil {
		return ErrConnectionNotFound
	}
	if err := os.Remove(c.Path); err != nil {
		return err
	}
	pkg.InfoLog("deleted database", c.Path)
	return nil
}

// Close closes every opened database.
func (m *Manager) Close() {
	m.locker.Lock()
	defer m.locker.Unlock()

	iter_ch, err := m.conns.IterCh()
	if err != nil {
		return
	}
	for rec := range iter_ch.Records() {
		closeConnection(rec.Val)
	}
}
