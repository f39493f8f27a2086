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

package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	listingDuration metric.Float64Histogram
	listingObjects  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/stacrunner/internal/listing")

	var err error
	listingDuration, err = meter.Float64Histogram(
		"stacrunner.listing.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of a full bucket listing"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create listing.duration histogram: %w", err))
	}

	listingObjects, err = meter.Int64Counter(
		"stacrunner.listing.objects",
		metric.WithDescription("Number of raster objects returned by listings"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create listing.objects counter: %w", err))
	}
}

// S3Lister enumerates raster objects in one bucket prefix and maps keys
// onto public asset URLs.
type S3Lister struct {
	Client *s3.Client
	Bucket string
	Prefix string
	// BaseURL is the public URL prefix an object key is appended to.
	BaseURL string
	// Suffix filters objects; only keys ending in it are rasters.
	Suffix string
}

var _ Lister = (*S3Lister)(nil)

// List walks every page of the bucket listing. Any page failure aborts
// the whole listing so callers never see a partial identifier set.
func (l *S3Lister) List(ctx context.Context) (mapset.Set[string], error) {
	suffix := l.Suffix
	if suffix == "" {
		suffix = ".tif"
	}
	base := strings.TrimSuffix(l.BaseURL, "/")

	start := time.Now()
	ids := mapset.NewSet[string]()

	paginator := s3.NewListObjectsV2Paginator(l.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.Bucket),
		Prefix: aws.String(l.Prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			listingDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
				attribute.String("outcome", "error"),
			))
			return nil, fmt.Errorf("list bucket %s: %w", l.Bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			ids.Add(base + "/" + key)
		}
	}

	listingDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("outcome", "ok"),
	))
	listingObjects.Add(ctx, int64(ids.Cardinality()))

	slog.Info("Bucket listing complete",
		slog.String("bucket", l.Bucket),
		slog.String("prefix", l.Prefix),
		slog.Int("objects", ids.Cardinality()),
		slog.Duration("elapsed", time.Since(start)))

	return ids, nil
}
