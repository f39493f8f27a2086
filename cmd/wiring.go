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
	"context"
	"fmt"
	"strings"

	"github.com/cardinalhq/stacrunner/config"
	"github.com/cardinalhq/stacrunner/internal/awsclient"
	"github.com/cardinalhq/stacrunner/internal/catalog"
	"github.com/cardinalhq/stacrunner/internal/changedetect"
	"github.com/cardinalhq/stacrunner/internal/extractor"
	"github.com/cardinalhq/stacrunner/internal/listing"
	"github.com/cardinalhq/stacrunner/internal/validcache"
)

// newLister returns a bucket-backed lister, or a file-backed one when a
// captured listing is being replayed.
func newLister(ctx context.Context, cfg *config.Config, urlsFile string) (listing.Lister, error) {
	if urlsFile != "" {
		return &listing.FileLister{Path: urlsFile}, nil
	}

	s3client, err := sourceS3(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &listing.S3Lister{
		Client:  s3client.Client,
		Bucket:  cfg.Source.Bucket,
		Prefix:  cfg.Source.Prefix,
		BaseURL: cfg.Source.BaseURL,
		Suffix:  cfg.Source.Suffix,
	}, nil
}

func sourceS3(ctx context.Context, cfg *config.Config) (*awsclient.S3Client, error) {
	return s3For(ctx, cfg.Source.Region, cfg.Source.Endpoint)
}

// catalogS3 reaches the bucket the catalog is published to, which may
// live in a different region or behind a different endpoint than the
// raster source. Unset values fall back to the source's.
func catalogS3(ctx context.Context, cfg *config.Config) (*awsclient.S3Client, error) {
	region := cfg.Catalog.Region
	if region == "" {
		region = cfg.Source.Region
	}
	endpoint := cfg.Catalog.Endpoint
	if endpoint == "" {
		endpoint = cfg.Source.Endpoint
	}
	return s3For(ctx, region, endpoint)
}

func s3For(ctx context.Context, region, endpoint string) (*awsclient.S3Client, error) {
	mgr, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client manager: %w", err)
	}
	opts := []awsclient.S3Option{}
	if region != "" {
		opts = append(opts, awsclient.WithRegion(region))
	}
	if endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(endpoint), awsclient.WithPathStyle())
	}
	return mgr.GetS3(opts...), nil
}

// sourcePrefix is the asset URL prefix stripped when deriving item IDs,
// covering both the public base URL and the bucket prefix under it.
func sourcePrefix(cfg *config.Config) string {
	p := strings.TrimSuffix(cfg.Source.BaseURL, "/") + "/"
	if prefix := strings.Trim(cfg.Source.Prefix, "/"); prefix != "" {
		p += prefix + "/"
	}
	return p
}

func openSnapshot(cfg *config.Config) *changedetect.SnapshotStore {
	return changedetect.NewSnapshotStore(cfg.Cache.SnapshotDir)
}

func changeDetector(cfg *config.Config) *changedetect.Detector {
	return changedetect.NewDetector(openSnapshot(cfg))
}

func openValidationStore(cfg *config.Config) (*validcache.SQLiteStore, error) {
	store, err := validcache.NewSQLiteStore(cfg.Cache.ValidationDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open validation cache: %w", err)
	}
	return store, nil
}

func newValidationBatch(cfg *config.Config, store validcache.Store) *validcache.Batch {
	return validcache.NewBatch(store, validcache.NewCommandChecker(nil), cfg.Workers.Validate)
}

func catalogRoots(cfg *config.Config) catalog.Roots {
	return catalog.Roots{
		Durable: cfg.Catalog.DurableRoot,
		Trial:   cfg.Catalog.TrialRoot,
	}
}

func catalogTarget(trial bool) catalog.Target {
	if trial {
		return catalog.TargetTrial
	}
	return catalog.TargetDurable
}

func openCatalogStore(cfg *config.Config, target catalog.Target) *catalog.Store {
	return catalog.NewStore(catalogRoots(cfg).For(target), cfg.Catalog.RemoteURL)
}

func newItemBuilder(cfg *config.Config, store *catalog.Store) *extractor.Builder {
	return extractor.NewBuilder(extractor.NewCommandReader(nil), extractor.BuilderConfig{
		CollectionID:   cfg.Catalog.ID,
		CollectionHref: store.CollectionHref(),
		SourcePrefix:   sourcePrefix(cfg),
		Workers:        cfg.Workers.Extract,
	})
}
