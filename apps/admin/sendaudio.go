package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/recorder"
)

// sendAudio previews the audio file at path in a recorder session, then sends it to the thread
// between from and to.
func (cli *commandLine) sendAudio(ctx context.Context, from, to, path, caption string) error {
	sender, err := cli.usrSvc.GetByEmail(ctx, from)
	if err != nil {
		return errors.Wrapf(err, "getting sender %s", from)
	}
	receiver, err := cli.usrSvc.GetByEmail(ctx, to)
	if err != nil {
		return errors.Wrapf(err, "getting receiver %s", to)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	thread := message.NewThreadController(cli.messageSvc, sender, receiver.ID, cli, cli.logger)
	session := recorder.NewSession(recorder.Options{
		Sender:      thread,
		Logger:      cli.logger,
		MaxFileSize: cli.conf.Uploads.AudioMaxUploadSize,
	})
	defer session.Close()

	err = session.LoadFromFile(attachment.File{Name: filepath.Base(path), Size: fi.Size(), Body: f})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "Loaded %s (%s).\n", filepath.Base(path), session.Duration().Round(time.Second))

	session.SetCaption(caption)
	if err := session.Send(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.stdout, thread.Status())
	return nil
}
