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

package awsclient

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"
)

// S3Client bundles an S3 client with the tracer used for its spans.
type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

type s3Config struct {
	region       string
	applyConfigs []func(*aws.Config)
	applyS3s     []func(*s3.Options)
}

// S3Option is a functional option for GetS3.
type S3Option func(*s3Config)

// WithRegion overrides the AWS region for this client.
func WithRegion(region string) S3Option {
	return func(c *s3Config) {
		c.region = region
	}
}

// WithEndpoint forces a custom S3 endpoint (eg MinIO, Ceph, or a
// non-AWS object store that speaks the S3 API).
func WithEndpoint(url string) S3Option {
	return func(c *s3Config) {
		c.applyS3s = append(c.applyS3s, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(url)
		})
	}
}

// WithPathStyle uses path-style addressing instead of virtual-host.
func WithPathStyle() S3Option {
	return func(c *s3Config) {
		c.applyS3s = append(c.applyS3s, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
}

// GetS3 builds an S3 client from the manager's base config plus the
// given options.
func (m *Manager) GetS3(opts ...S3Option) *S3Client {
	cfg := s3Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	awsCfg := m.baseCfg.Copy()
	if cfg.region != "" {
		awsCfg.Region = cfg.region
	}
	for _, apply := range cfg.applyConfigs {
		apply(&awsCfg)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		for _, apply := range cfg.applyS3s {
			apply(o)
		}
	})

	return &S3Client{Client: client, Tracer: m.tracer}
}
