package main

import (
	"bytes"
	"context"
	"database/sql"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
	"github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()

	db := inmem.Open()
	usrRepo = inmem.NewUserRepository(db)
	return &commandLine{
		db:      &sqlx.DB{},
		usrRepo: usrRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	var gotArgs []string
	migrateRunFunc = func(command string, db *sql.DB, args ...string) error {
		gotCommand = command
		gotArgs = args
		return nil
	}
	defer func() { migrateRunFunc = database.RunMigrationCommand }()

	type extra struct {
		command string
		args    []string
	}
	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}, extra: extra{command: "up"}},
		{name: "down", args: []string{"migrate", "down"}, extra: extra{command: "down"}},
		{name: "status", args: []string{"migrate", "status"}, extra: extra{command: "status"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, extra: extra{command: "up-to", args: []string{"2"}}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}, extra: extra{command: "down-to", args: []string{"1"}}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			gotCommand, gotArgs = "", nil

			err := cli.run(args)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
			extra := tt.extra.(extra)
			if gotCommand != extra.command {
				t.Errorf("cli.run() command = %q, want %q", gotCommand, extra.command)
			}
			if !reflect.DeepEqual(gotArgs, extra.args) {
				t.Errorf("cli.run() args = %v, want %v", gotArgs, extra.args)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("LolC@t123"), nil }

	t.Run("creates a new admin", func(t *testing.T) {
		if err := cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd", "-admin"}); err != nil {
			t.Fatalf("cli.run() unexpected error = %v", err)
		}
		usr, err := usrRepo.GetUserByUsername(context.Background(), "boss")
		if err != nil {
			t.Fatalf("GetUserByUsername() failed, %v", err)
		}
		if !reflect.DeepEqual(usr.Roles, user.AllRoles) {
			t.Errorf("Roles = %v, want %v", usr.Roles, user.AllRoles)
		}
		if usr.IsActive == nil || !*usr.IsActive {
			t.Error("expected user to be active")
		}
		if err = usr.CheckPassword("LolC@t123"); err != nil {
			t.Error("password was not set")
		}
	})

	t.Run("updates an existing user", func(t *testing.T) {
		orig := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

		if err := cli.run([]string{"admin", "adduser", "-username", "awe", "-email", "awe@test.cd"}); err != nil {
			t.Fatalf("cli.run() unexpected error = %v", err)
		}
		refreshed, err := usrRepo.GetUserByID(context.Background(), orig.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed, %v", err)
		}
		if bytes.Equal(refreshed.PasswordHash, orig.PasswordHash) {
			t.Error("failed to update password")
		}
	})
}
