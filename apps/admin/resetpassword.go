package main

import (
	"context"
	"errors"

	"github.com/trezcool/pensamiento/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if tag := user.CheckPassword(pwd, usr.Name, usr.Email); tag != "" {
		return errors.New(user.PasswordPolicyText(tag))
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
