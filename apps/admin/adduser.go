package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser creates a user, or updates them if the username or email is taken.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr, err = cli.usrRepo.GetUserByUsernameOrEmail(ctx, email)
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return err
		}
	}

	exists := usr.ID != ""
	usr.Username = uname
	usr.Email = email
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	active := true
	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr, &active)
		return err
	}
	usr.IsActive = &active
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
