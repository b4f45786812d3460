package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf            *core.Config
	logger          core.Logger
	db              *sql.DB
	usrSvc          *user.Service
	announcementSvc *announcement.Service
	messageSvc      *message.Service

	stdin  *bufio.Reader
	stdout io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, "Usage:")
	fmt.Fprintln(cli.stdout, "  migrate COMMAND [ARGS] - run a goose command against the database (up, down, status, ...)")
	fmt.Fprintln(cli.stdout, "  adduser -name NAME -email EMAIL [-roles ROLES] - create or update a user; the password is prompted next")
	fmt.Fprintln(cli.stdout, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.stdout, "  announcements list [-course COURSE] - list announcements, newest first")
	fmt.Fprintln(cli.stdout, "  announcements delete -id ID - delete an announcement and its attachment")
	fmt.Fprintln(cli.stdout, "  sendaudio -from EMAIL -to EMAIL -file PATH [-caption CAPTION] - send an audio file as a voice message")
	fmt.Fprintln(cli.stdout, "  purgetokens - delete expired password reset tokens")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRoles := addUserCmd.String("roles", user.RoleAdmin, "Comma-separated roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	sendAudioCmd := flag.NewFlagSet("sendaudio", flag.ExitOnError)
	sendAudioFrom := sendAudioCmd.String("from", "", "The sender's email.")
	sendAudioTo := sendAudioCmd.String("to", "", "The receiver's email.")
	sendAudioFile := sendAudioCmd.String("file", "", "Path of the audio file.")
	sendAudioCaption := sendAudioCmd.String("caption", "", "Optional caption.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Fprintln(cli.stdout, "Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *addUserName, *addUserEmail, pwd, strings.Split(*addUserRoles, ","))

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "announcements":
		return cli.announcements(ctx, args[2:])

	case "sendaudio":
		if err := sendAudioCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *sendAudioFrom == "" || *sendAudioTo == "" || *sendAudioFile == "" {
			sendAudioCmd.Usage()
			return errHelp
		}
		return cli.sendAudio(ctx, *sendAudioFrom, *sendAudioTo, *sendAudioFile, *sendAudioCaption)

	case "purgetokens":
		n, err := cli.usrSvc.PurgeExpiredTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.stdout, "%d tokens purged\n", n)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.stdout, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.stdout)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// Confirm implements listctl.Confirmer by reading a y/N answer from stdin.
func (cli *commandLine) Confirm(_ context.Context, prompt string) (bool, error) {
	fmt.Fprintf(cli.stdout, "%s [y/N] ", prompt)
	answer, err := cli.stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch core.CleanString(answer, true /* lower */) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
