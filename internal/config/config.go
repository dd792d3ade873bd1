// Package config loads the S3-backed store's settings the way the
// nunseik/Mossblac file-storage starters load their AWS/JWT secrets: from
// the process environment, populated first from a .env file via
// github.com/joho/godotenv if one is present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the CLI and the S3-backed store need that isn't
// passed as a command-line argument.
type Config struct {
	S3Bucket string
	S3Region string

	// AWSEndpoint overrides the AWS endpoint resolver, for testing against
	// a minio-compatible local endpoint. Empty means use the default AWS
	// resolver.
	AWSEndpoint string

	// MoovCapBytes is the refusal threshold for an in-memory moov payload
	// (spec.md §5). Zero means remux.DefaultMoovCapBytes.
	MoovCapBytes int64

	// ChunkSize is the copy chunk size for mdat and other large boxes.
	// Zero means remux.DefaultChunkSize.
	ChunkSize int
}

// Load reads .env (if present; a missing file is not an error) and then the
// process environment, mirroring the starters' apiConfig construction.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := &Config{
		S3Bucket:    os.Getenv("MP4FASTSTART_S3_BUCKET"),
		S3Region:    os.Getenv("MP4FASTSTART_S3_REGION"),
		AWSEndpoint: os.Getenv("MP4FASTSTART_AWS_ENDPOINT"),
	}

	if v := os.Getenv("MP4FASTSTART_MOOV_CAP_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: parsing MP4FASTSTART_MOOV_CAP_BYTES: %w", err)
		}
		cfg.MoovCapBytes = n
	}

	if v := os.Getenv("MP4FASTSTART_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: parsing MP4FASTSTART_CHUNK_SIZE: %w", err)
		}
		cfg.ChunkSize = n
	}

	return cfg, nil
}
