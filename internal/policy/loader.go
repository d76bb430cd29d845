package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	id "checkpoint/pkg/domain"
)

// bootstrapNamespace seeds name-derived policy IDs so bootstrap entries keep
// a stable identity across restarts.
var bootstrapNamespace = uuid.MustParse("8f7cbd4e-5cd8-44a5-9be1-6f6b9c5a9d11")

// bootstrapEntry is one policy in the bootstrap file. The office scope is a
// string in the file and validated on load; version bookkeeping belongs to
// the store.
type bootstrapEntry struct {
	Policy   `yaml:",inline"`
	OfficeID string `yaml:"office_id,omitempty"`
}

// bootstrapFile is the on-disk shape of a policy bootstrap document.
type bootstrapFile struct {
	Policies []*bootstrapEntry `yaml:"policies"`
}

// LoadBootstrap publishes the policies declared in a YAML file. Used at
// startup so a fresh deployment has a working policy set without an admin
// round-trip. Each entry's identity is derived from its name, so re-running
// bootstrap against a durable store publishes the next version of the same
// policy instead of accumulating parallel current policies. Names must be
// unique within the file.
func LoadBootstrap(ctx context.Context, store Store, path string, logger *slog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy bootstrap file: %w", err)
	}

	var file bootstrapFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse policy bootstrap file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Policies))
	for _, entry := range file.Policies {
		p := entry.Policy
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("bootstrap policy %q: duplicate name", p.Name)
		}
		seen[p.Name] = struct{}{}
		p.ID = id.PolicyID(uuid.NewSHA1(bootstrapNamespace, []byte(p.Name)))
		if entry.OfficeID != "" {
			officeID, err := id.ParseOfficeID(entry.OfficeID)
			if err != nil {
				return fmt.Errorf("bootstrap policy %q: %w", p.Name, err)
			}
			p.OfficeID = &officeID
		}

		stored, err := store.Publish(ctx, &p)
		if err != nil {
			return fmt.Errorf("publish bootstrap policy %q: %w", p.Name, err)
		}
		if logger != nil {
			logger.InfoContext(ctx, "bootstrap policy published",
				"policy_id", stored.ID,
				"name", stored.Name,
				"version", stored.Version,
			)
		}
	}
	return nil
}
