package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type emailChannel struct {
	addr     string
	auth     smtp.Auth
	from     string
	to       []string
	sendMail sendMailFunc
}

func NewEmail(params config.NotifierParameters) (Channel, error) {
	if params.SMTPHost == "" || params.EmailFrom == "" || len(params.EmailTo) == 0 {
		return nil, xerrors.New("email channel requires smtp host, sender and recipients")
	}

	var auth smtp.Auth
	if params.SMTPUser != "" {
		auth = smtp.PlainAuth("", params.SMTPUser, params.SMTPPassword, params.SMTPHost)
	}

	return &emailChannel{
		addr:     fmt.Sprintf("%s:%d", params.SMTPHost, params.SMTPPort),
		auth:     auth,
		from:     params.EmailFrom,
		to:       params.EmailTo,
		sendMail: smtp.SendMail,
	}, nil
}

func (c *emailChannel) Name() string {
	return "email"
}

// Send runs the SMTP exchange in its own goroutine so the channel timeout is honored.
func (c *emailChannel) Send(ctx context.Context, alert model.Alert) error {
	msg, err := c.message(alert)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(c.addr, c.auth, c.from, c.to, msg)
	}()

	select {
	case <-ctx.Done():
		return xerrors.Errorf("sending email: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return xerrors.Errorf("sending email: %w", err)
		}
		return nil
	}
}

func (c *emailChannel) message(alert model.Alert) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	text := fmt.Sprintf("Fire detected by %s at %s.\nEpisode: %s\nNozzle aimed: %s\n",
		alert.Camera, alert.Timestamp.Format("2006-01-02 15:04:05 MST"), alert.EpisodeID, alert.Direction)
	if alert.SnapshotURL != "" {
		text += "Snapshot: " + alert.SnapshotURL + "\n"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, xerrors.Errorf("create text part: %w", err)
	}
	if _, err := part.Write([]byte(text)); err != nil {
		return nil, xerrors.Errorf("write text part: %w", err)
	}

	if len(alert.Snapshot) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", "image/jpeg")
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Disposition", `attachment; filename="snapshot.jpg"`)
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, xerrors.Errorf("create image part: %w", err)
		}
		if err := writeBase64Lines(part, alert.Snapshot); err != nil {
			return nil, xerrors.Errorf("write image part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, xerrors.Errorf("close writer: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", c.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(c.to, ", "))
	fmt.Fprintf(&msg, "Subject: Fire alert from %s\r\n", alert.Camera)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

// base64 body lines are capped at 76 characters
const base64LineLen = 76

func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(len(encoded), base64LineLen)
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
