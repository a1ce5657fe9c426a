// Command tdbadmin serves the SQLite admin API for the database files in a directory.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tobsdb/tdbadmin/internal/auth"
	"github.com/tobsdb/tdbadmin/internal/conn"
	"github.com/tobsdb/tdbadmin/internal/parser"
	"github.com/tobsdb/tdbadmin/internal/sqlite"
	"github.com/tobsdb/tdbadmin/pkg"
)

const version = "0.1.0"

var CLI struct {
	LogLevel string `name:"log-level" help:"none, error, info or debug" default:"info" env:"TDB_LOG_LEVEL"`

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Start the admin API server"`
	Token    TokenCmd    `cmd:"" help:"Print a bearer token for a configured user"`
	Validate ValidateCmd `cmd:"" help:"Check a schema script for errors"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

type AuthFlags struct {
	JwtSecret string        `name:"jwt-secret" help:"HS256 secret; auth is disabled when empty" env:"TDB_JWT_SECRET"`
	JwtIssuer string        `name:"jwt-issuer" help:"Expected iss claim" default:"tdbadmin" env:"TDB_JWT_ISSUER"`
	JwtTTL    time.Duration `name:"jwt-ttl" help:"Lifetime of issued tokens" default:"12h"`
	Users     []string      `name:"user" help:"User allowed to log in, as name:password[:role]" env:"TDB_USERS"`
}

func (f AuthFlags) validator() (*auth.Validator, error) {
	v := &auth.Validator{Secret: f.JwtSecret, Issuer: f.JwtIssuer, TTL: f.JwtTTL}
	for _, entry := range f.Users {
		u, err := auth.ParseUser(entry)
		if err != nil {
			return nil, err
		}
		v.Users = append(v.Users, u)
	}
	if !v.Enabled() && len(v.Users) > 0 {
		pkg.WarnLog("users are configured but --jwt-secret is empty; auth is disabled")
	}
	return v, nil
}

type ServeCmd struct {
	Dir        string `help:"Directory holding the database files" default:"./dbs" type:"path" env:"TDB_DIR"`
	Port       int    `help:"Listening port" default:"5000" env:"TDB_PORT"`
	CorsOrigin string `name:"cors-origin" help:"Origin of the web client" default:"http://localhost:5173" env:"TDB_CORS_ORIGIN"`

	AuthFlags `embed:""`
}

func (c *ServeCmd) Run() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}

	validator, err := c.validator()
	if err != nil {
		return err
	}

	manager := conn.NewManager(c.Dir)
	if err := manager.Scan(); err != nil {
		return err
	}
	pkg.InfoLog("found", len(manager.List()), "databases in", c.Dir)

	conn.NewServer(manager, validator, c.CorsOrigin).Listen(c.Port)
	return nil
}

type TokenCmd struct {
	Name string `arg:"" help:"User name"`

	AuthFlags `embed:""`
}

func (c *TokenCmd) Run() error {
	validator, err := c.validator()
	if err != nil {
		return err
	}
	for _, u := range validator.Users {
		if u.Name == c.Name {
			token, err := validator.Issue(u)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		}
	}
	return fmt.Errorf("unknown user %s", c.Name)
}

type ValidateCmd struct {
	Schema string `arg:"" optional:"" help:"Schema script" default:"./schema.tdb" type:"existingfile"`
}

func (c *ValidateCmd) Run() error {
	fmt.Printf("Checking %s for errors\n", c.Schema)

	schema_data, err := os.ReadFile(c.Schema)
	if err != nil {
		return err
	}

	tables, err := parser.ParseSchema(string(schema_data))
	if err != nil {
		return fmt.Errorf("Invalid schema; %w", err)
	}

	fmt.Printf("Schema checks successful: %d tables are valid\n", len(tables))
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Printf("tdbadmin %s (sqlite driver %s, %s)\n", version, info.Package, info.DriverType)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("tdbadmin"),
		kong.Description("Browser based admin for SQLite databases"),
		kong.UsageOnError(),
	)

	level, err := pkg.ParseLogLevel(CLI.LogLevel)
	ctx.FatalIfErrorf(err)
	pkg.SetLogLevel(level)

	ctx.FatalIfErrorf(ctx.Run())
}
