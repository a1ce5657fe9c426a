package conn_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tobsdb/tdbadmin/internal/auth"
	. "github.com/tobsdb/tdbadmin/internal/conn"
	"gotest.tools/assert"
)

const testOrigin = "http://localhost:5173"

type testResponse struct {
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Errors  map[string]string `json:"errors"`
}

type testClient struct {
	t     *testing.T
	url   string
	token string
}

func newTestServer(t *testing.T, validator *auth.Validator) (*Server, *testClient) {
	t.Helper()
	if validator == nil {
		validator = &auth.Validator{}
	}
	s := NewServer(NewManager(t.TempDir()), validator, testOrigin)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Manager.Close()
	})
	return s, &testClient{t: t, url: ts.URL}
}

func (c *testClient) do(method, path string, body any) (int, testResponse) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NilError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.url+path, &buf)
	assert.NilError(c.t, err)
	if len(c.token) > 0 {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := http.DefaultClient.Do(req)
	assert.NilError(c.t, err)
	defer res.Body.Close()

	var r testResponse
	if res.StatusCode != http.StatusNoContent && strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		assert.NilError(c.t, json.NewDecoder(res.Body).Decode(&r))
		assert.Equal(c.t, r.Status, res.StatusCode)
	}
	return res.StatusCode, r
}

type testConnection struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

func createDatabase(t *testing.T, c *testClient, name string) string {
	t.Helper()
	status, res := c.do(http.MethodPost, "/", map[string]string{"name": name})
	assert.Equal(t, status, http.StatusCreated, res.Message)
	var conn testConnection
	assert.NilError(t, json.Unmarshal(res.Data, &conn))
	return conn.Id
}

var usersTable = map[string]any{
	"tableName": "Users",
	"columns": []map[string]any{
		{"name": "id", "typeName": "Int", "isNotNull": true, "defaultValue": ""},
		{"name": "name", "typeName": "Text", "isNotNull": true, "defaultValue": ""},
	},
	"primaryKey": 0,
}

type testRows struct {
	Name string `json:"name"`
	Rows [][]struct {
		StringValue string `json:"stringValue"`
		IsNull      bool   `json:"isNull"`
	} `json:"rows"`
}

func getRows(t *testing.T, c *testClient, path string) testRows {
	t.Helper()
	status, res := c.do(http.MethodGet, path, nil)
	assert.Equal(t, status, http.StatusOK, res.Message)
	var rows testRows
	assert.NilError(t, json.Unmarshal(res.Data, &rows))
	return rows
}

func TestDatabases(t *testing.T) {
	s, c := newTestServer(t, nil)

	// files already in the directory are listed
	assert.NilError(t, os.WriteFile(filepath.Join(s.Manager.Dir, "notes.txt"), nil, 0o644))
	b_id := createDatabase(t, c, "b")
	a_id := createDatabase(t, c, "a.sqlite")

	status, res := c.do(http.MethodGet, "/", nil)
	assert.Equal(t, status, http.StatusOK)
	var list []testConnection
	assert.NilError(t, json.Unmarshal(res.Data, &list))
	assert.DeepEqual(t, list, []testConnection{{a_id, "a.sqlite"}, {b_id, "b.db"}})

	status, res = c.do(http.MethodPost, "/", map[string]string{"name": "b"})
	assert.Equal(t, status, http.StatusBadRequest)
	assert.Assert(t, strings.Contains(res.Errors["name"], "already exists"))

	status, res = c.do(http.MethodPost, "/", map[string]string{"name": "../evil"})
	assert.Equal(t, status, http.StatusBadRequest)
	_, ok := res.Errors["name"]
	assert.Assert(t, ok)

	status, _ = c.do(http.MethodDelete, "/"+b_id, nil)
	assert.Equal(t, status, http.StatusNoContent)
	_, err := os.Stat(filepath.Join(s.Manager.Dir, "b.db"))
	assert.Assert(t, os.IsNotExist(err))

	status, _ = c.do(http.MethodDelete, "/"+b_id, nil)
	assert.Equal(t, status, http.StatusNotFound)

	status, res = c.do(http.MethodGet, "/types", nil)
	assert.Equal(t, status, http.StatusOK)
	var names []string
	assert.NilError(t, json.Unmarshal(res.Data, &names))
	assert.Equal(t, len(names), 6)
}

func TestTables(t *testing.T) {
	_, c := newTestServer(t, nil)
	id := createDatabase(t, c, "test")

	status, res := c.do(http.MethodPost, "/db/"+id, usersTable)
	assert.Equal(t, status, http.StatusCreated, res.Message)

	t.Run("validation", func(t *testing.T) {
		status, res := c.do(http.MethodPost, "/db/"+id, map[string]any{
			"tableName": "Dup",
			"columns": []map[string]any{
				{"name": "id", "typeName": "Int"},
				{"name": "id", "typeName": "Text"},
			},
			"primaryKey": 0,
		})
		assert.Equal(t, status, http.StatusBadRequest)
		assert.Equal(t, res.Errors["id"], `Column name is not unique: "id"`)

		status, res = c.do(http.MethodPost, "/db/"+id, usersTable)
		assert.Equal(t, status, http.StatusBadRequest)
		assert.Equal(t, res.Errors["tableName"], "Table Users already exists")
	})

	t.Run("info", func(t *testing.T) {
		status, res := c.do(http.MethodGet, "/db/"+id, nil)
		assert.Equal(t, status, http.StatusOK)
		var info struct {
			Id     string `json:"id"`
			Name   string `json:"name"`
			Tables []struct {
				Name    string `json:"name"`
				Columns []struct {
					Name     string `json:"name"`
					TypeName string `json:"typeName"`
					IsPk     bool   `json:"isPk"`
				} `json:"columns"`
			} `json:"tables"`
		}
		assert.NilError(t, json.Unmarshal(res.Data, &info))
		assert.Equal(t, info.Name, "test.db")
		assert.Equal(t, len(info.Tables), 1)
		assert.Equal(t, info.Tables[0].Columns[0].TypeName, "Int")
		assert.Assert(t, info.Tables[0].Columns[0].IsPk)
	})

	t.Run("not found", func(t *testing.T) {
		status, _ := c.do(http.MethodGet, "/db/nope", nil)
		assert.Equal(t, status, http.StatusNotFound)
		status, _ = c.do(http.MethodGet, "/db/"+id+"/Nope", nil)
		assert.Equal(t, status, http.StatusNotFound)
	})

	t.Run("drop", func(t *testing.T) {
		status, _ := c.do(http.MethodPost, "/db/"+id, map[string]any{
			"tableName":  "Tmp",
			"columns":    []map[string]any{{"name": "k", "typeName": "Char"}},
			"primaryKey": 0,
		})
		assert.Equal(t, status, http.StatusCreated)
		status, _ = c.do(http.MethodDelete, "/db/"+id+"/Tmp/drop", nil)
		assert.Equal(t, status, http.StatusNoContent)
		status, _ = c.do(http.MethodGet, "/db/"+id+"/Tmp", nil)
		assert.Equal(t, status, http.StatusNotFound)
	})
}

func TestRows(t *testing.T) {
	_, c := newTestServer(t, nil)
	id := createDatabase(t, c, "test")
	status, _ := c.do(http.MethodPost, "/db/"+id, usersTable)
	assert.Equal(t, status, http.StatusCreated)
	path := "/db/" + id + "/Users"

	status, res := c.do(http.MethodPost, path, map[string]any{"values": map[string]string{"id": "1", "name": "Ann"}})
	assert.Equal(t, status, http.StatusCreated, res.Message)

	status, res = c.do(http.MethodPost, path, map[string]any{"values": map[string]string{"id": "1", "name": ""}})
	assert.Equal(t, status, http.StatusBadRequest)
	assert.DeepEqual(t, res.Errors, map[string]string{"name": "Wrong value!"})

	status, res = c.do(http.MethodPost, path, map[string]any{"values": map[string]string{"id": "1", "name": "Bob"}})
	assert.Equal(t, status, http.StatusConflict, res.Message)

	status, res = c.do(http.MethodPost, path, map[string]any{"values": map[string]string{"id": "3", "age": "4"}})
	assert.Equal(t, status, http.StatusBadRequest)
	assert.Equal(t, res.Errors["age"], "Error! age column doesn't exists")

	rows := getRows(t, c, path)
	assert.Equal(t, rows.Name, "Users")
	assert.Equal(t, len(rows.Rows), 1)
	assert.Equal(t, rows.Rows[0][1].StringValue, `"Ann"`)

	status, res = c.do(http.MethodPut, path+"/1", map[string]any{"values": map[string]string{"id": "x"}})
	assert.Equal(t, status, http.StatusBadRequest)
	assert.Equal(t, res.Errors["id"], "Wrong value!")

	status, _ = c.do(http.MethodPut, path+"/9", map[string]any{"values": map[string]string{"name": "x"}})
	assert.Equal(t, status, http.StatusNotFound)

	status, res = c.do(http.MethodPut, path+"/1", map[string]any{"values": map[string]string{"id": "2"}})
	assert.Equal(t, status, http.StatusOK, res.Message)

	status, _ = c.do(http.MethodPost, path, map[string]any{"values": map[string]string{"id": "5", "name": "Zed"}})
	assert.Equal(t, status, http.StatusCreated)

	rows = getRows(t, c, path+"?search=zed")
	assert.Equal(t, len(rows.Rows), 0)
	rows = getRows(t, c, path+"?search=%28%3Fi%29zed")
	assert.Equal(t, len(rows.Rows), 1)

	status, _ = c.do(http.MethodDelete, path+"?pkValue=1", nil)
	assert.Equal(t, status, http.StatusNoContent)
	assert.Equal(t, len(getRows(t, c, path).Rows), 2)

	status, _ = c.do(http.MethodDelete, path+"?pkValue=2", nil)
	assert.Equal(t, status, http.StatusNoContent)
	rows = getRows(t, c, path)
	assert.Equal(t, len(rows.Rows), 1)
	assert.Equal(t, rows.Rows[0][0].StringValue, "5")

	status, res = c.do(http.MethodDelete, path+"?pkValue=abc", nil)
	assert.Equal(t, status, http.StatusBadRequest)
	assert.Equal(t, res.Errors["id"], "Wrong value!")
}

func TestChangeFeed(t *testing.T) {
	s, c := newTestServer(t, nil)
	id := createDatabase(t, c, "test")

	ws_url := "ws" + strings.TrimPrefix(c.url, "http") + "/ws/" + id
	header := http.Header{"Origin": []string{testOrigin}}
	ws, _, err := websocket.DefaultDialer.Dial(ws_url, header)
	assert.NilError(t, err)
	defer ws.Close()

	for i := 0; s.Hub.Subscribers(id) == 0; i++ {
		assert.Assert(t, i < 100, "subscriber never registered")
		time.Sleep(10 * time.Millisecond)
	}

	status, _ := c.do(http.MethodPost, "/db/"+id, usersTable)
	assert.Equal(t, status, http.StatusCreated)
	status, _ = c.do(http.MethodPost, "/db/"+id+"/Users", map[string]any{"values": map[string]string{"id": "7", "name": "Ann"}})
	assert.Equal(t, status, http.StatusCreated)

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	assert.NilError(t, ws.ReadJSON(&ev))
	assert.DeepEqual(t, ev, Event{Action: EventCreateTable, Table: "Users"})
	assert.NilError(t, ws.ReadJSON(&ev))
	assert.DeepEqual(t, ev, Event{Action: EventCreateRow, Table: "Users", Pk: "7"})

	t.Run("foreign origin", func(t *testing.T) {
		_, res, err := websocket.DefaultDialer.Dial(ws_url, http.Header{"Origin": []string{"http://evil.example"}})
		assert.Assert(t, err != nil)
		assert.Equal(t, res.StatusCode, http.StatusForbidden)
	})

	t.Run("unknown database", func(t *testing.T) {
		_, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(c.url, "http")+"/ws/nope", nil)
		assert.Assert(t, err != nil)
		assert.Equal(t, res.StatusCode, http.StatusNotFound)
	})
}

func TestCors(t *testing.T) {
	_, c := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, c.url+"/db/x", nil)
	assert.NilError(t, err)
	req.Header.Set("Origin", testOrigin)
	res, err := http.DefaultClient.Do(req)
	assert.NilError(t, err)
	res.Body.Close()
	assert.Equal(t, res.StatusCode, http.StatusNoContent)
	assert.Equal(t, res.Header.Get("Access-Control-Allow-Origin"), testOrigin)

	req.Header.Set("Origin", "http://evil.example")
	res, err = http.DefaultClient.Do(req)
	assert.NilError(t, err)
	res.Body.Close()
	assert.Equal(t, res.Header.Get("Access-Control-Allow-Origin"), "")
}

func TestAuth(t *testing.T) {
	ann, err := auth.ParseUser("ann:secret:readwrite")
	assert.NilError(t, err)
	_, c := newTestServer(t, &auth.Validator{Secret: "s3cret", Users: []*auth.User{ann}})

	status, res := c.do(http.MethodGet, "/", nil)
	assert.Equal(t, status, http.StatusUnauthorized)
	assert.Equal(t, res.Errors[""], "Missing bearer token")

	status, _ = c.do(http.MethodPost, "/login", map[string]string{"username": "ann", "password": "nope"})
	assert.Equal(t, status, http.StatusUnauthorized)

	status, res = c.do(http.MethodPost, "/login", map[string]string{"username": "ann", "password": "secret"})
	assert.Equal(t, status, http.StatusOK)
	var login struct {
		Token string `json:"token"`
	}
	assert.NilError(t, json.Unmarshal(res.Data, &login))
	c.token = login.Token

	status, _ = c.do(http.MethodGet, "/", nil)
	assert.Equal(t, status, http.StatusOK)
	createDatabase(t, c, "test")
}

func TestApplySchema(t *testing.T) {
	_, c := newTestServer(t, nil)
	id := createDatabase(t, c, "test")

	schema := `
$TABLE Users {
    id   Int key(primary)
    name Text default(Ann)
}
$TABLE Tags {
    tag Char key(primary)
}`

	status, res := c.do(http.MethodPost, "/schema/"+id, map[string]string{"schema": schema})
	assert.Equal(t, status, http.StatusCreated, res.Message)

	status, _ = c.do(http.MethodPost, "/db/"+id+"/Users", map[string]any{"values": map[string]string{"id": "1"}})
	assert.Equal(t, status, http.StatusCreated)
	rows := getRows(t, c, "/db/"+id+"/Users")
	assert.Equal(t, rows.Rows[0][1].StringValue, `"Ann"`)

	status, res = c.do(http.MethodPost, "/schema/"+id, map[string]string{"schema": schema})
	assert.Equal(t, status, http.StatusBadRequest)
	assert.Equal(t, res.Errors["Tags"], "Table Tags already exists")

	status, res = c.do(http.MethodPost, "/schema/"+id, map[string]string{"schema": "$TABLE x {\n y Number\n}"})
	assert.Equal(t, status, http.StatusBadRequest)
	assert.ErrorContains(t, errors.New(res.Errors["schema"]), "Invalid field type: Number")
}
