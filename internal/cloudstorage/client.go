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

// Package cloudstorage is the narrow object-storage interface the
// catalog QA and publish steps consume. The synchronization core never
// depends on it directly.
package cloudstorage

import (
	"context"

	"github.com/cardinalhq/stacrunner/internal/awsclient"
)

// Client provides object-level access to the remote catalog bucket.
type Client interface {
	// DownloadObject downloads an object to a temp file under tmpdir.
	// Returns the temp filename, size, whether the object was not
	// found, and error.
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// UploadObject uploads a local file to the bucket.
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error

	// DeleteObject deletes an object from the bucket.
	DeleteObject(ctx context.Context, bucket, key string) error
}

// NewClient wraps an S3 client in the Client interface.
func NewClient(s3client *awsclient.S3Client) Client {
	return &s3Client{s3client: s3client}
}
