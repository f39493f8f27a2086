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
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/stacrunner/config"
	"github.com/cardinalhq/stacrunner/internal/assetid"
	"github.com/cardinalhq/stacrunner/internal/catalog"
)

// wholeWorld is the spatial extent used when no bbox is configured.
var wholeWorld = []float64{-180, -90, 180, 90}

func init() {
	var (
		urlsFile string
		trial    bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init-collection",
		Short: "Create the collection document",
		Long: `Create collection.json in the chosen output root. The temporal extent
is derived from the acquisition dates found in the current listing's
asset paths; the spatial extent comes from configuration.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "stacrunner-init-collection"
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
			if cfg.Catalog.ID == "" {
				return fmt.Errorf("catalog.id must be configured")
			}

			target := catalogTarget(trial)
			store := openCatalogStore(cfg, target)
			if _, err := store.LoadCollection(); err == nil && !force {
				return fmt.Errorf("collection already exists in %s root; use --force to overwrite", target)
			}

			lister, err := newLister(doneCtx, cfg, urlsFile)
			if err != nil {
				return err
			}
			current, err := lister.List(doneCtx)
			if err != nil {
				return fmt.Errorf("failed to list source: %w", err)
			}
			assetsScannedCounter.Add(doneCtx, int64(current.Cardinality()))

			bbox := cfg.Catalog.BBox
			if len(bbox) == 0 {
				bbox = wholeWorld
			}
			col := catalog.NewCollection(
				cfg.Catalog.ID,
				cfg.Catalog.Title,
				cfg.Catalog.Description,
				cfg.Catalog.License,
				catalog.Extent{
					Spatial:  catalog.SpatialExtent{BBox: [][]float64{bbox}},
					Temporal: temporalExtentOf(current.ToSlice()),
				},
			)
			col.Links = append(col.Links,
				catalog.Link{Rel: "self", Href: store.CollectionHref(), Type: "application/json"},
				catalog.Link{Rel: "root", Href: store.CollectionHref(), Type: "application/json"},
			)

			if err := store.SaveCollection(col); err != nil {
				return fmt.Errorf("failed to write collection: %w", err)
			}
			slog.Info("Collection created",
				slog.String("id", col.ID),
				slog.String("target", target.String()),
				slog.String("dir", store.Dir()))
			return nil
		},
	}
	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "Replay a newline-delimited identifier file instead of listing the bucket")
	cmd.Flags().BoolVar(&trial, "trial", false, "Write to the disposable trial root instead of the durable one")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing collection")
	rootCmd.AddCommand(cmd)
}

// temporalExtentOf scans asset paths for acquisition dates and returns
// the min/max interval, open-ended when no dates were found.
func temporalExtentOf(identifiers []string) catalog.TemporalExtent {
	var minT, maxT time.Time
	for _, id := range identifiers {
		ts, ok := assetid.TimeFromPath(id)
		if !ok {
			continue
		}
		if minT.IsZero() || ts.Before(minT) {
			minT = ts
		}
		if maxT.IsZero() || ts.After(maxT) {
			maxT = ts
		}
	}
	return catalog.TemporalInterval(minT, maxT)
}
