// Package source retrieves device database files for the updater.
//
// A Source returns the current file as a stream together with a fingerprint
// that identifies that version. The updater passes the fingerprint of the
// last published file back on the next Fetch, so sources can answer
// ErrNotModified without transferring anything:
//
//   - FileSource compares size and modification time.
//   - HTTPSource sends If-None-Match or If-Modified-Since.
//   - S3Source compares the object ETag from a HEAD request.
//   - RedisSource compares a version key, or the sha256 of the blob.
//
// Open picks the implementation from a location string:
//
//	src, err := source.Open(ctx, "s3://device-data/releases/devices.zip",
//		source.WithS3(source.S3Config{Region: "eu-west-1"}),
//	)
//	if err != nil {
//		return err
//	}
//	if c, ok := src.(io.Closer); ok {
//		defer c.Close()
//	}
//
// Errors are classified into ErrUnreachable, ErrNotFound, ErrAccessDenied
// and ErrInvalidLocation; check them with errors.Is.
package source
