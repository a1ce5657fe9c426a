package conn

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tobsdb/tdbadmin/internal/builder"
	"github.com/tobsdb/tdbadmin/internal/parser"
	"github.com/tobsdb/tdbadmin/internal/query"
	"github.com/tobsdb/tdbadmin/internal/sqlite"
	"github.com/tobsdb/tdbadmin/internal/types"
	"github.com/tobsdb/tdbadmin/pkg"
)

type Response struct {
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Status  int                 `json:"status"`
	Errors  builder.FieldErrors `json:"errors,omitempty"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status, Errors: builder.NewFieldError(builder.FieldErrorGeneral, err)}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

// ErrorResponse maps an error from the layers below to a response.
func ErrorResponse(err error) Response {
	if fe, ok := builder.AsFieldErrors(err); ok {
		return Response{Message: "Invalid values", Status: http.StatusBadRequest, Errors: fe}
	}
	if qe, ok := query.AsQueryError(err); ok {
		return NewErrorResponse(qe.Status(), qe.Error())
	}

	switch {
	case errors.Is(err, ErrConnectionNotFound),
		errors.Is(err, builder.ErrTableNotFound),
		errors.Is(err, builder.ErrRowNotFound):
		return NewErrorResponse(http.StatusNotFound, err.Error())
	case errors.Is(err, builder.ErrNoPrimaryKey):
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	case errors.Is(err, builder.ErrDatabaseClosed), errors.Is(err, builder.ErrAffectedRows):
		return NewErrorResponse(http.StatusConflict, err.Error())
	}

	pkg.ErrorLog(err)
	return NewErrorResponse(http.StatusInternalServerError, err.Error())
}

func writeResponse(w http.ResponseWriter, res Response) {
	if res.Status == http.StatusNoContent {
		w.WriteHeader(res.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		pkg.ErrorLog("writing response", err)
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return builder.NewFieldError(builder.FieldErrorGeneral, fmt.Sprintf("Invalid request body: %s", err))
	}
	return nil
}

func (s *Server) ListDatabasesHandler(r *http.Request) Response {
	if err := s.Manager.Scan(); err != nil {
		return ErrorResponse(err)
	}
	return NewResponse(http.StatusOK, "", s.Manager.List())
}

type CreateDatabaseRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateDatabaseHandler(r *http.Request) Response {
	var req CreateDatabaseRequest
	if err := decodeBody(r, &req); err != nil {
		return ErrorResponse(err)
	}
	c, err := s.Manager.CreateDatabase(req.Name)
	if err != nil {
		return ErrorResponse(err)
	}
	return NewResponse(http.StatusCreated, fmt.Sprintf("Created database %s", c.Name), c)
}

func (s *Server) DeleteDatabaseHandler(r *http.Request) Response {
	id := r.PathValue("id")
	if err := s.Manager.DeleteDatabase(id); err != nil {
		return ErrorResponse(err)
	}
	s.Hub.Disconnect(id)
	return NewResponse(http.StatusNoContent, "", nil)
}

func (s *Server) TypesHandler(r *http.Request) Response {
	return NewResponse(http.StatusOK, "", types.AvailableTypeNames())
}

func (s *Server) InfoHandler(r *http.Request) Response {
	return NewResponse(http.StatusOK, "", sqlite.GetInfo())
}

type DatabaseInfo struct {
	Id     string           `json:"id"`
	Name   string           `json:"name"`
	Tables []*builder.Table `json:"tables"`
}

func (s *Server) DatabaseInfoHandler(r *http.Request) Response {
	id := r.PathValue("id")
	db, err := s.Manager.Connect(id)
	if err != nil {
		return ErrorResponse(err)
	}

	var res Response
	pkg.RLockWrap(db, func() {
		// encode while the lock is held; tables share the row caches
		buf, err := json.Marshal(DatabaseInfo{id, db.Name, db.Tables()})
		if err != nil {
			res = ErrorResponse(err)
			return
		}
		res = NewResponse(http.StatusOK, "", json.RawMessage(buf))
	})
	return res
}

type CreateTableRequest struct {
	TableName  string              `json:"tableName"`
	Columns    []builder.ColumnDef `json:"columns"`
	PrimaryKey int                 `json:"primaryKey"`
}

func (s *Server) CreateTableHandler(r *http.Request) Response {
	id := r.PathValue("id")
	var req CreateTableRequest
	if err := decodeBody(r, &req); err != nil {
		return ErrorResponse(err)
	}

	db, err := s.Manager.Connect(id)
	if err != nil {
		return ErrorResponse(err)
	}

	err = pkg.LockWrapErr(db, func() error {
		_, err := db.CreateTable(req.TableName, req.Columns, req.PrimaryKey)
		return err
	})
	if err != nil {
		return ErrorResponse(err)
	}

	s.Hub.Publish(id, Event{Action: EventCreateTable, Table: req.TableName})
	return NewResponse(http.StatusCreated, fmt.Sprintf("Created table %s", req.TableName), nil)
}

func (s *Server) DropTableHandler(r *http.Request) Response {
	id, table_name := r.PathValue("id"), r.PathValue("table")
	db, err := s.Manager.Connect(id)
	if err != nil {
		return ErrorResponse(err)
	}

	if err := pkg.LockWrapErr(db, func() error { return db.DropTable(table_name) }); err != nil {
		return ErrorResponse(err)
	}

	s.Hub.Publish(id, Event{Action: EventDropTable, Table: table_name})
	return NewResponse(http.StatusNoContent, "", nil)
}

// withTable runs f on the named table under the database's write lock.
func (s *Server) withTable(r *http.Request, f func(t *builder.Table) error) error {
	db, err := s.Manager.Connect(r.PathValue("id"))
	if err != nil {
		return err
	}
	return pkg.LockWrapErr(db, func() error {
		table, ok := db.Table(r.PathValue("table"))
		if !ok {
			return builder.ErrTableNotFound
		}
		return f(table)
	})
}

type TableRows struct {
	Name    string            `json:"name"`
	Columns []*builder.Column `json:"columns"`
	Rows    []builder.Row     `json:"rows"`
}

func (s *Server) GetTableHandler(r *http.Request) Response {
	search := r.URL.Query().Get("search")

	var buf []byte
	err := s.withTable(r, func(t *builder.Table) error {
		rows, err := t.GetAllRows(search)
		if err != nil {
			return err
		}
		buf, err = json.Marshal(TableRows{t.Name, t.Columns(), rows})
		return err
	})
	if err != nil {
		return ErrorResponse(err)
	}
	return NewResponse(http.StatusOK, "", json.RawMessage(buf))
}

type EditRowRequest struct {
	Values map[string]string `json:"values"`
}

func (s *Server) CreateRowHandler(r *http.Request) Response {
	var req EditRowRequest
	if err := decodeBody(r, &req); err != nil {
		return ErrorResponse(err)
	}

	var pk string
	err := s.withTable(r, func(t *builder.Table) error {
		if err := t.CreateRow(req.Values); err != nil {
			return err
		}
		if i := t.PrimaryKeyIndex(); i != -1 {
			rows := t.CachedRows()
			pk = rows[len(rows)-1][i].StringValue()
		}
		return nil
	})
	if err != nil {
		return ErrorResponse(err)
	}

	table_name := r.PathValue("table")
	s.Hub.Publish(r.PathValue("id"), Event{Action: EventCreateRow, Table: table_name, Pk: pk})
	return NewResponse(http.StatusCreated, fmt.Sprintf("Created new row in table %s", table_name), nil)
}

func (s *Server) UpdateRowHandler(r *http.Request) Response {
	var req EditRowRequest
	if err := decodeBody(r, &req); err != nil {
		return ErrorResponse(err)
	}

	pk := r.PathValue("pk")
	err := s.withTable(r, func(t *builder.Table) error { return t.EditRow(pk, req.Values) })
	if err != nil {
		return ErrorResponse(err)
	}

	table_name := r.PathValue("table")
	s.Hub.Publish(r.PathValue("id"), Event{Action: EventUpdateRow, Table: table_name, Pk: pk})
	return NewResponse(http.StatusOK, fmt.Sprintf("Updated row in table %s", table_name), nil)
}

func (s *Server) DeleteRowHandler(r *http.Request) Response {
	pk := r.URL.Query().Get("pkValue")
	err := s.withTable(r, func(t *builder.Table) error { return t.DeleteRow(pk) })
	if err != nil {
		return ErrorResponse(err)
	}

	s.Hub.Publish(r.PathValue("id"), Event{Action: EventDeleteRow, Table: r.PathValue("table"), Pk: pk})
	return NewResponse(http.StatusNoContent, "", nil)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) LoginHandler(r *http.Request) Response {
	if !s.Auth.Enabled() {
		return NewErrorResponse(http.StatusNotFound, "Authentication is disabled")
	}
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		return ErrorResponse(err)
	}
	token, err := s.Auth.Login(req.Username, req.Password)
	if err != nil {
		return NewErrorResponse(http.StatusUnauthorized, err.Error())
	}
	return NewResponse(http.StatusOK, "", map[string]string{"token": token})
}

type ApplySchemaRequest struct {
	Schema string `json:"schema"`
}

// ApplySchemaHandler creates every table of a schema script. Name clashes
// are checked up front so a script either creates all its tables or none,
// barring store failures.
func (s *Server) ApplySchemaHandler(r *http.Request) Response {
	id := r.PathValue("id")
	var req ApplySchemaRequest
	if err := decodeBody(r, &req); err != nil {
		return ErrorResponse(err)
	}

	defs, err := parser.ParseSchema(req.Schema)
	if err != nil {
		return ErrorResponse(builder.NewFieldError("schema", err.Error()))
	}

	db, err := s.Manager.Connect(id)
	if err != nil {
		return ErrorResponse(err)
	}

	err = pkg.LockWrapErr(db, func() error {
		errs := builder.FieldErrors{}
		for _, def := range defs {
			if db.HasTable(def.Name) {
				errs[def.Name] = fmt.Sprintf("Table %s already exists", def.Name)
			}
		}
		if len(errs) > 0 {
			return errs
		}

		for _, def := range defs {
			if _, err := db.CreateTable(def.Name, def.Columns, def.PrimaryKey); err != nil {
				return fmt.Errorf("creating %s: %w", def.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return ErrorResponse(err)
	}

	for _, def := range defs {
		s.Hub.Publish(id, Event{Action: EventCreateTable, Table: def.Name})
	}
	return NewResponse(http.StatusCreated, fmt.Sprintf("Created %d tables", len(defs)), nil)
}
