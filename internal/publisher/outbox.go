package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"postflow/internal/fileutil"
	"postflow/internal/queue"
	"postflow/internal/services"
)

// Outbox writes each published post as a JSON document for a downstream
// tool (or a human) to pick up.
type Outbox struct {
	dir string
}

// NewOutbox constructs an outbox backend rooted at dir.
func NewOutbox(dir string) *Outbox {
	return &Outbox{dir: dir}
}

// Envelope is the outbox document format.
type Envelope struct {
	ID               int64     `json:"id"`
	ExternalID       string    `json:"external_id"`
	Kind             string    `json:"kind"`
	Sign             string    `json:"sign,omitempty"`
	Theme            string    `json:"theme,omitempty"`
	DisplayText      string    `json:"display_text"`
	Caption          string    `json:"caption"`
	Tags             []string  `json:"tags"`
	AssetRef         string    `json:"asset_ref"`
	PlannedPublishAt time.Time `json:"planned_publish_at"`
}

// Name implements Backend.
func (o *Outbox) Name() string { return "outbox" }

// Path returns the document path for itemID.
func (o *Outbox) Path(itemID int64) string {
	return filepath.Join(o.dir, fmt.Sprintf("post_%d.json", itemID))
}

// Publish writes the envelope. An existing document for the same item counts
// as already published.
func (o *Outbox) Publish(ctx context.Context, item *queue.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := o.Path(item.ID)
	if existing, err := readEnvelope(path); err == nil {
		if existing.ID != item.ID {
			return "", services.Wrap(services.ErrPermanent, StageName, "outbox",
				fmt.Sprintf("%s belongs to item %d", path, existing.ID), nil)
		}
		return existing.ExternalID, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", services.Wrap(services.ErrPermanent, StageName, "outbox", "existing outbox document is unreadable", err)
	}

	envelope := Envelope{
		ID:          item.ID,
		ExternalID:  fmt.Sprintf("outbox-%d", item.ID),
		Kind:        string(item.Kind),
		Sign:        item.Sign,
		Theme:       item.Theme,
		DisplayText: item.DisplayText,
		Caption:     FullCaption(item),
		Tags:        item.Tags,
		AssetRef:    item.AssetRef,
	}
	if item.PlannedPublishAt != nil {
		envelope.PlannedPublishAt = item.PlannedPublishAt.UTC()
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, StageName, "outbox", "encode document", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return "", services.Wrap(services.ErrTransient, StageName, "outbox", "write document", err)
	}
	return envelope.ExternalID, nil
}

// HealthCheck verifies the outbox directory exists.
func (o *Outbox) HealthCheck(context.Context) error {
	if strings.TrimSpace(o.dir) == "" {
		return errors.New("outbox directory not configured")
	}
	info, err := os.Stat(o.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", o.dir)
	}
	return nil
}

func readEnvelope(path string) (Envelope, error) {
	var envelope Envelope
	data, err := os.ReadFile(path)
	if err != nil {
		return envelope, err
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return envelope, fmt.Errorf("decode %s: %w", path, err)
	}
	return envelope, nil
}
