package main

import (
	"context"
	"fmt"

	"github.com/trezcool/pensamiento/core/user"
)

// addUser creates an active user.User after validating nu.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return cli.describeErr(err)
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return cli.describeErr(err)
	}
	fmt.Fprintf(cli.out, "created %s %q (id %d)\n", usr.Role, usr.Email, usr.ID)
	return nil
}
