package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KazanKK/mariadump/notify"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func SendCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "smtp-host", Usage: "SMTP server host (e.g., smtp.gmail.com)"},
		&cli.IntFlag{Name: "smtp-port", Usage: "SMTP server port (default: 587 for STARTTLS, 465 for SSL)"},
		&cli.StringFlag{Name: "smtp-user", Usage: "Sender address (SMTP username)"},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password or app password (or set SMTP_PASSWORD env var)",
			EnvVars: []string{"SMTP_PASSWORD"},
		},
		&cli.BoolFlag{Name: "use-ssl", Usage: "Use implicit TLS instead of STARTTLS"},
		&cli.StringFlag{Name: "recipient", Usage: "Recipient address"},
		&cli.StringFlag{
			Name:  "subject",
			Value: notify.DefaultSubject,
			Usage: "Subject ({timestamp} is replaced with the current time)",
		},
		&cli.StringFlag{Name: "body", Usage: "Message body (default: generated file report)"},
		&cli.StringSliceFlag{Name: "files", Usage: "Files to send"},
		&cli.StringFlag{Name: "backup-dir", Usage: "Send the newest backups from this directory"},
		&cli.IntFlag{Name: "latest", Value: 1, Usage: "Number of newest files to send with --backup-dir"},
		&cli.BoolFlag{Name: "zip", Usage: "Bundle the files into one zip attachment"},
	}
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "send",
		Usage: "Email export files as attachments",
		Flags: flags,
		Action: func(c *cli.Context) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			smtpCfg := config.SMTP
			if c.IsSet("smtp-host") {
				smtpCfg.Host = c.String("smtp-host")
			}
			if c.IsSet("smtp-port") {
				smtpCfg.Port = c.Int("smtp-port")
			}
			if c.IsSet("smtp-user") {
				smtpCfg.User = c.String("smtp-user")
			}
			if c.IsSet("smtp-password") {
				smtpCfg.Password = c.String("smtp-password")
			}
			if c.IsSet("use-ssl") {
				smtpCfg.UseSSL = c.Bool("use-ssl")
			}
			if c.IsSet("recipient") {
				smtpCfg.Recipient = c.String("recipient")
			}

			files := c.StringSlice("files")
			backupDir := c.String("backup-dir")
			if len(files) > 0 && backupDir != "" {
				return fmt.Errorf("use either --files or --backup-dir, not both")
			}
			if len(files) == 0 && backupDir == "" {
				return fmt.Errorf("one of --files or --backup-dir is required")
			}

			logDir := config.OutputDir
			if backupDir != "" {
				logDir = backupDir
			}
			InitLogging(logDir, c.Bool("quiet"), c.Bool("verbose"), "send")

			if backupDir != "" {
				fmt.Printf("Looking for the %d newest backups in %s\n", c.Int("latest"), backupDir)
				files, err = notify.FindLatest(backupDir, c.Int("latest"))
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return fmt.Errorf("no backup files found in %s", backupDir)
				}
				for _, f := range files {
					fmt.Printf("  - %s\n", f)
				}
			}

			return sendFiles(smtpCfg, c.String("subject"), c.String("body"), files, c.Bool("zip"))
		},
	}
}

// sendFiles mails files with the given settings. Missing files are skipped.
func sendFiles(smtpCfg notify.SMTPConfig, subject, body string, files []string, bundle bool) error {
	if err := smtpCfg.Validate(); err != nil {
		return err
	}
	sender := notify.NewSMTPSender(smtpCfg)

	msg, cleanup, err := buildMessage(sender.From(), smtpCfg.Recipient, subject, body, files, bundle, time.Now())
	if err != nil {
		return err
	}
	defer cleanup()
	if warning := msg.SizeWarning(); warning != "" {
		log.Warn(warning)
		fmt.Printf("⚠️  %s\n", warning)
	}

	fmt.Printf("Sending %d file(s) to %s (%s)\n", len(msg.Attachments), smtpCfg.Recipient,
		humanize.IBytes(uint64(notify.TotalSize(msg.Attachments))))
	for _, a := range msg.Attachments {
		fmt.Printf("  %s (%s)\n", a.Name(), humanize.IBytes(uint64(a.Size)))
	}
	if err := sender.Send(msg); err != nil {
		return err
	}
	fmt.Println("✅ Email sent")
	return nil
}

// buildMessage prepares the message and, when bundle is set, replaces the
// attachments with one zip next to the first file. cleanup removes the zip.
func buildMessage(from, recipient, subject, body string, files []string, bundle bool, now time.Time) (notify.Message, func(), error) {
	cleanup := func() {}
	msg, err := notify.Prepare(from, recipient, subject, body, files, now)
	if err != nil {
		return msg, cleanup, err
	}
	if bundle {
		dir := filepath.Dir(msg.Attachments[0].Path)
		archive := filepath.Join(dir, fmt.Sprintf("backup_%s.zip", now.Format("20060102_150405")))
		zipped, err := notify.Bundle(msg.Attachments, archive)
		if err != nil {
			return msg, cleanup, fmt.Errorf("bundling files: %v", err)
		}
		cleanup = func() { os.Remove(archive) }
		msg.Attachments = []notify.Attachment{zipped}
	}
	return msg, cleanup, nil
}
