package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/listctl"
	"github.com/trezcool/darasa/core/user"
)

// operator is the actor of announcement commands run from the CLI.
var operator = user.User{Name: "admin", Roles: []string{user.RoleAdmin}}

func (cli *commandLine) announcements(ctx context.Context, args []string) error {
	listCmd := flag.NewFlagSet("announcements list", flag.ExitOnError)
	listCourse := listCmd.String("course", "", "Only list the announcements of this course.")

	deleteCmd := flag.NewFlagSet("announcements delete", flag.ExitOnError)
	deleteID := deleteCmd.String("id", "", "The announcement ID.")

	if len(args) == 0 {
		fmt.Fprintln(cli.stdout, "Usage: announcements list|delete [FLAGS]")
		return errHelp
	}

	switch args[0] {
	case "list":
		if err := listCmd.Parse(args[1:]); err != nil {
			return err
		}
		ctl := announcement.NewController(cli.announcementSvc, operator, *listCourse, cli, cli.logger)
		if err := ctl.Load(ctx); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cli.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOURSE\tCREATED\tTITLE")
		for _, a := range ctl.Items() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.CourseID, a.CreatedAt.Format("2006-01-02 15:04"), a.Title)
		}
		return w.Flush()

	case "delete":
		if err := deleteCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *deleteID == "" {
			deleteCmd.Usage()
			return errHelp
		}
		ctl := announcement.NewController(cli.announcementSvc, operator, "", cli, cli.logger)
		if err := ctl.Load(ctx); err != nil {
			return err
		}
		err := ctl.Delete(ctx, *deleteID)
		if errors.Is(err, listctl.ErrCancelled) {
			fmt.Fprintln(cli.stdout, "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.stdout, ctl.Status())
		return nil

	default:
		fmt.Fprintln(cli.stdout, "Usage: announcements list|delete [FLAGS]")
		return errHelp
	}
}
