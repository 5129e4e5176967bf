package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type pullInfo struct {
	Total      int64
	Downloaded int64
	Extracted  int64
}

// pullProgressLogger condenses the per-layer docker pull log stream into
// periodic aggregate log lines. The stream never announces the full download
// size up front, so the summary counts completed work rather than rendering a
// per-layer status bar.
type pullProgressLogger struct {
	log     *logrus.Entry
	known   map[string]*pullInfo
	backoff time.Time
}

func (d *Client) logPullProgress(ctx context.Context, logs io.Reader) error {
	f := &pullProgressLogger{
		log:   d.log,
		known: map[string]*pullInfo{},
	}

	dec := json.NewDecoder(logs)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msg jsonmessage.JSONMessage
		switch err := dec.Decode(&msg); {
		case err == io.EOF:
			f.flush()
			return nil
		case err != nil:
			return errors.Wrap(err, "error parsing pull log stream")
		}
		if msg.Error != nil {
			return errors.Errorf("error pulling image: %s", msg.Error.Message)
		}
		f.update(msg)
	}
}

func (f *pullProgressLogger) update(msg jsonmessage.JSONMessage) {
	if msg.ID == "" {
		// Stream-level lines, e.g. the final digest and status.
		if msg.Status != "" {
			f.log.Info(msg.Status)
		}
		return
	}

	info, ok := f.known[msg.ID]
	if !ok {
		info = &pullInfo{}
		f.known[msg.ID] = info
	}

	switch {
	case msg.Status == "Downloading" && msg.Progress != nil:
		info.Downloaded = msg.Progress.Current
		info.Total = msg.Progress.Total
	case msg.Status == "Extracting" && msg.Progress != nil:
		info.Extracted = msg.Progress.Current
	case msg.Status == "Pull complete":
		info.Extracted = info.Total
	}

	if time.Now().After(f.backoff) {
		f.log.Info(f.summary())
		f.backoff = time.Now().Add(time.Second)
	}
}

func (f *pullProgressLogger) flush() {
	if len(f.known) > 0 {
		f.log.Info(f.summary())
	}
}

func (f *pullProgressLogger) summary() string {
	var downloaded, extracted int64
	complete := 0
	for _, info := range f.known {
		downloaded += info.Downloaded
		extracted += info.Extracted
		if info.Total > 0 && info.Extracted >= info.Total {
			complete++
		}
	}
	return fmt.Sprintf("pulled %d/%d layers, downloaded %.1fMB, extracted %.1fMB",
		complete, len(f.known), float64(downloaded)/1e6, float64(extracted)/1e6)
}
