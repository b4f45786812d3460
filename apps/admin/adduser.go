package main

import (
	"context"
	"fmt"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd string, roles []string) error {
	usr, err := cli.usrSvc.AddOrUpdate(ctx, name, email, pwd, roles)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "user %s <%s> saved\n", usr.ID, usr.Email)
	return nil
}
