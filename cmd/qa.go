// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/stacrunner/config"
	"github.com/cardinalhq/stacrunner/internal/catalog"
	"github.com/cardinalhq/stacrunner/internal/cloudstorage"
	"github.com/cardinalhq/stacrunner/internal/idgen"
)

func init() {
	var (
		samplePercent int
		maxItems      int
		trial         bool
		localBase     string
	)

	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Spot-check local items against their published copies",
		Long: `Sample a percentage of the locally materialized items, fetch the
published copy of each from the catalog bucket, and compare the fields
that matter. Exits non-zero when any sampled item disagrees.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "stacrunner-qa"
			doneCtx, doneFx, err := setupTelemetry(servicename, nil)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			start := time.Now()
			target := catalogTarget(trial)
			store := openCatalogStore(cfg, target)

			ids, err := store.ItemIDsOnDisk()
			if err != nil {
				return fmt.Errorf("failed to enumerate local items: %w", err)
			}
			if len(ids) == 0 {
				return fmt.Errorf("no local items in %s root", target)
			}

			sample := sampleIDs(ids, samplePercent, maxItems)

			var remote cloudstorage.Client
			if localBase != "" {
				remote = cloudstorage.NewFileClient(localBase)
			} else {
				s3client, err := catalogS3(doneCtx, cfg)
				if err != nil {
					return err
				}
				remote = cloudstorage.NewClient(s3client)
			}

			tmpdir, err := os.MkdirTemp("", "stacrunner-qa-"+idgen.GenerateShortBase32ID())
			if err != nil {
				return fmt.Errorf("failed to create scratch dir: %w", err)
			}
			defer func() { _ = os.RemoveAll(tmpdir) }()

			keyPrefix, err := publishedKeyPrefix(cfg.Catalog.RemoteURL)
			if err != nil {
				return err
			}
			var missing, mismatched int
			for _, id := range sample {
				if err := doneCtx.Err(); err != nil {
					return err
				}
				local, err := store.ReadItem(id)
				if err != nil {
					return fmt.Errorf("failed to read local item %s: %w", id, err)
				}

				key := path.Join(keyPrefix, id+".json")
				fn, _, notFound, err := remote.DownloadObject(doneCtx, tmpdir, cfg.Catalog.Bucket, key)
				if err != nil {
					return fmt.Errorf("failed to download %s: %w", key, err)
				}
				if notFound {
					missing++
					slog.Warn("Published item missing", slog.String("itemID", id))
					continue
				}

				published, err := readItemFile(fn)
				if err != nil {
					mismatched++
					slog.Warn("Published item unparseable", slog.String("itemID", id), slog.Any("error", err))
					continue
				}
				if diffs := compareItems(local, published); len(diffs) > 0 {
					mismatched++
					slog.Warn("Item disagrees with published copy",
						slog.String("itemID", id),
						slog.Any("fields", diffs))
				}
			}

			runDuration.Record(doneCtx, time.Since(start).Seconds())
			slog.Info("QA run complete",
				slog.String("target", target.String()),
				slog.Int("sampled", len(sample)),
				slog.Int("missing", missing),
				slog.Int("mismatched", mismatched))

			if missing+mismatched > 0 {
				return fmt.Errorf("%d of %d sampled items disagree with the published catalog", missing+mismatched, len(sample))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&samplePercent, "sample-percent", 5, "Percentage of local items to check")
	cmd.Flags().IntVar(&maxItems, "max-items", 100, "Upper bound on sampled items (0 = no bound)")
	cmd.Flags().BoolVar(&trial, "trial", false, "Check the disposable trial root instead of the durable one")
	cmd.Flags().StringVar(&localBase, "local-base", "", "Compare against a local directory instead of the catalog bucket")
	rootCmd.AddCommand(cmd)
}

// publishedKeyPrefix derives the object-key prefix items are published
// under from the catalog's public URL: the merger writes item hrefs as
// <remote>/<id>.json, so the URL's path is the in-bucket location.
func publishedKeyPrefix(remoteURL string) (string, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog remote_url %q: %w", remoteURL, err)
	}
	return strings.Trim(u.Path, "/"), nil
}

// sampleIDs picks roughly percent of ids at random, capped at maxItems.
// At least one item is always sampled.
func sampleIDs(ids []string, percent, maxItems int) []string {
	n := len(ids) * percent / 100
	if n < 1 {
		n = 1
	}
	if maxItems > 0 && n > maxItems {
		n = maxItems
	}
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

func readItemFile(fn string) (*catalog.Item, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	var item catalog.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// compareItems reports which of the fields the pipeline derives differ
// between the local and published copies of one item.
func compareItems(local, published *catalog.Item) []string {
	var diffs []string
	if local.ID != published.ID {
		diffs = append(diffs, "id")
	}
	if !local.Properties.Datetime.Equal(published.Properties.Datetime) {
		diffs = append(diffs, "datetime")
	}
	if local.Properties.DatetimeUnknown != published.Properties.DatetimeUnknown {
		diffs = append(diffs, "datetime_unknown")
	}
	if !reflect.DeepEqual(local.Geometry, published.Geometry) {
		diffs = append(diffs, "geometry")
	}
	if !reflect.DeepEqual(local.BBox, published.BBox) {
		diffs = append(diffs, "bbox")
	}
	if len(local.Assets) != len(published.Assets) {
		diffs = append(diffs, "assets")
	}
	return diffs
}
