// Package publish uploads run artifacts to Azure Blob Storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
)

// Uploader is the azblob surface used for publishing; *azblob.Client satisfies it.
type Uploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// artifacts lists run files in upload order. results.json is required.
var artifacts = []struct {
	name        string
	contentType string
	required    bool
}{
	{name: "results.json", contentType: "application/json", required: true},
	{name: "results.csv", contentType: "text/csv; charset=utf-8"},
	{name: "report.html", contentType: "text/html; charset=utf-8"},
}

// Blob is one uploaded artifact.
type Blob struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int    `json:"size"`
}

// Manifest describes a published run.
type Manifest struct {
	Container string `json:"container"`
	Prefix    string `json:"prefix"`
	RunID     string `json:"run_id"`
	Suite     string `json:"suite"`
	Blobs     []Blob `json:"blobs"`
	// Missing lists optional artifacts absent from the run directory.
	Missing []string `json:"missing,omitempty"`
}

// Publisher uploads run directories to one container.
type Publisher struct {
	Client    Uploader
	Container string
	Logger    *zap.SugaredLogger
}

// NewAzure builds a publisher authenticated with DefaultAzureCredential.
func NewAzure(cfg config.PublishConfig, logger *zap.SugaredLogger) (*Publisher, error) {
	if strings.TrimSpace(cfg.AccountURL) == "" {
		return nil, errors.New("publish.account_url is not configured")
	}
	if strings.TrimSpace(cfg.Container) == "" {
		return nil, errors.New("publish.container is not configured")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &Publisher{Client: client, Container: cfg.Container, Logger: logger}, nil
}

// Prefix is the blob directory for a run: <suite>/<run-id>/.
func Prefix(results harness.Results) string {
	return path.Join(harness.SafeName(results.Suite), results.RunID) + "/"
}

// Publish uploads the artifacts found in runDir.
func (p *Publisher) Publish(ctx context.Context, runDir string) (Manifest, error) {
	if p.Client == nil {
		return Manifest{}, errors.New("publish: client is nil")
	}
	results, err := report.LoadResults(filepath.Join(runDir, "results.json"))
	if err != nil {
		return Manifest{}, err
	}
	if results.RunID == "" {
		return Manifest{}, fmt.Errorf("results in %s have no run id", runDir)
	}
	logger := logging.OrNop(p.Logger)
	manifest := Manifest{
		Container: p.Container,
		Prefix:    Prefix(results),
		RunID:     results.RunID,
		Suite:     results.Suite,
	}
	for _, artifact := range artifacts {
		data, err := os.ReadFile(filepath.Join(runDir, artifact.name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !artifact.required {
				manifest.Missing = append(manifest.Missing, artifact.name)
				continue
			}
			return manifest, fmt.Errorf("read %s: %w", artifact.name, err)
		}
		blobName := manifest.Prefix + artifact.name
		contentType := artifact.contentType
		_, err = p.Client.UploadBuffer(ctx, p.Container, blobName, data, &azblob.UploadBufferOptions{
			HTTPHeaders: &blob.HTTPHeaders{
				BlobContentType: &contentType,
			},
			Metadata: map[string]*string{
				"run_id": &manifest.RunID,
			},
		})
		if err != nil {
			return manifest, fmt.Errorf("upload %s: %w", blobName, err)
		}
		logger.Infow("artifact published", "container", p.Container, "blob", blobName, "bytes", len(data))
		manifest.Blobs = append(manifest.Blobs, Blob{Name: artifact.name, Path: blobName, Size: len(data)})
	}
	return manifest, nil
}
